package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-match/internal/feed"
)

var (
	ingestRetailer string
	ingestURL      string
	ingestSheet    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load a retailer product feed (CSV or XLSX) into the store",
	Long: `Parses a retailer feed and upserts its rows as product records keyed by
(retailer, article_number). Ingestion never touches match state; newly seen
records start unmatched. With --url the feed is downloaded first (http, https
or ftp).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "ingest"), zap.String("retailer", ingestRetailer))

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" && ingestURL == "" {
			return eris.New("ingest: a feed file or --url is required")
		}

		if ingestURL != "" {
			fetcher := feed.NewFetcher(feed.FetcherOptions{
				Timeout:      time.Duration(cfg.Ingest.FTPTimeoutSec) * time.Second,
				DownloadRate: cfg.Ingest.DownloadRate,
			})
			dir, err := os.MkdirTemp("", "product-feed-*")
			if err != nil {
				return eris.Wrap(err, "ingest: temp dir")
			}
			defer os.RemoveAll(dir)

			path, err = fetcher.Fetch(ctx, ingestURL, dir)
			if err != nil {
				return eris.Wrap(err, "ingest: download feed")
			}
		}

		var header []string
		var rows [][]string
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			header, rows, err = feed.ReadXLSX(path, feed.XLSXOptions{SheetName: ingestSheet})
		default:
			header, rows, err = feed.ReadCSV(path)
		}
		if err != nil {
			return err
		}

		records, err := feed.MapRows(ingestRetailer, header, rows)
		if err != nil {
			return err
		}
		log.Info("feed parsed", zap.Int("records", len(records)))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		batchSize := cfg.Ingest.BatchSize
		if batchSize <= 0 {
			batchSize = 1000
		}

		var inserted atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Ingest.Workers)

		for start := 0; start < len(records); start += batchSize {
			batch := records[start:min(start+batchSize, len(records))]
			g.Go(func() error {
				n, err := st.InsertProducts(gctx, batch)
				if err != nil {
					return err
				}
				inserted.Add(n)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "ingest: insert products")
		}

		log.Info("ingest complete",
			zap.Int64("upserted", inserted.Load()),
			zap.String("file", path),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRetailer, "retailer", "", "retailer slug (required)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "download the feed from this URL before parsing")
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	_ = ingestCmd.MarkFlagRequired("retailer")
	rootCmd.AddCommand(ingestCmd)
}
