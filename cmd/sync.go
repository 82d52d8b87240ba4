package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
	"github.com/sells-group/product-match/internal/resilience"
)

var syncOnce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run batch matching on a schedule",
	Long: `Invokes the full batch sweep (exact then fuzzy) at a fixed interval.
Each sweep is wrapped in the standard retry convention: three attempts with
1s/2s/4s backoff on transient failures. The engine itself never retries.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		retryCfg := resilience.RetryConfig{
			MaxAttempts:    cfg.Sync.RetryAttempts,
			InitialBackoff: cfg.Sync.RetryBackoff,
			Multiplier:     2.0,
			OnRetry:        resilience.RetryLogger("sync", "match_run"),
		}

		sweep := func() {
			report, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.RunReport, error) {
				return engine.Run(ctx)
			})
			if err != nil {
				log.Error("batch sweep failed", zap.Error(err))
				return
			}
			log.Info("batch sweep complete",
				zap.Int("exact_groups", len(report.Exact.Results)),
				zap.Int("fuzzy_groups", len(report.Fuzzy.Results)),
				zap.Int("review_candidates", len(report.Fuzzy.Review)),
			)
		}

		sweep()
		if syncOnce {
			return nil
		}

		interval := cfg.Sync.Interval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("sync stopped")
				return nil
			case <-ticker.C:
				sweep()
			}
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "run a single sweep and exit")
	rootCmd.AddCommand(syncCmd)
}
