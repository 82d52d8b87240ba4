// Package feed parses retailer product feeds (CSV, XLSX) and downloads them
// over HTTP or FTP. It is the ingestion boundary in front of the matching
// engine: feeds become ProductRecords with empty match state.
package feed

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/model"
)

// Column names recognized in feed headers, case-insensitive.
const (
	colArticleNumber = "article_number"
	colName          = "name"
	colSKU           = "manufacturer_sku"
	colUpcEan        = "upc_ean"
	colWidth         = "width"
	colHeight        = "height"
	colDepth         = "depth"
	colLength        = "length"
	colWeight        = "weight"
)

// MapRows converts raw feed rows into ProductRecords for one retailer. The
// header row names the columns; article_number is required, everything else
// is optional. Empty cells become absent fields, never empty strings, so the
// matchers' absent-input rules apply uniformly.
func MapRows(retailer string, header []string, rows [][]string) ([]model.ProductRecord, error) {
	if retailer == "" {
		return nil, eris.New("feed: retailer slug is required")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx[colArticleNumber]; !ok {
		return nil, eris.Errorf("feed: header has no %s column", colArticleNumber)
	}

	cell := func(row []string, col string) *string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return nil
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			return nil
		}
		return &v
	}

	records := make([]model.ProductRecord, 0, len(rows))
	for rn, row := range rows {
		article := cell(row, colArticleNumber)
		if article == nil {
			return nil, eris.Errorf("feed: row %d: empty %s", rn+1, colArticleNumber)
		}

		records = append(records, model.ProductRecord{
			ArticleNumber:   *article,
			Retailer:        retailer,
			Name:            cell(row, colName),
			ManufacturerSKU: cell(row, colSKU),
			UpcEan:          cell(row, colUpcEan),
			Dimensions: model.Dimensions{
				Width:  cell(row, colWidth),
				Height: cell(row, colHeight),
				Depth:  cell(row, colDepth),
				Length: cell(row, colLength),
				Weight: cell(row, colWeight),
			},
		})
	}
	return records, nil
}
