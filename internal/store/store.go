// Package store persists ProductRecords and implements the engine's
// group-assignment write path for Postgres and SQLite.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/match"
	"github.com/sells-group/product-match/internal/model"
)

// ErrGroupConflict is returned when a conditional group write finds that one
// of the targeted records is no longer unmatched (or no longer exists). The
// whole write is rolled back; nothing is partially applied.
var ErrGroupConflict = eris.New("store: group write conflict: record already grouped")

// Stats summarizes the matching state of the product pool.
type Stats struct {
	Total       int64            `json:"total"`
	Matched     int64            `json:"matched"`
	Unmatched   int64            `json:"unmatched"`
	Groups      int64            `json:"groups"`
	PerRetailer map[string]int64 `json:"per_retailer"`
}

// Store is the full persistence interface: the engine's read/write surface
// plus ingestion, the manual unlink path, and lifecycle.
type Store interface {
	match.Store

	// InsertProducts upserts retailer feed records keyed by
	// (retailer, article_number). Match state is never touched by ingestion.
	InsertProducts(ctx context.Context, records []model.ProductRecord) (int64, error)

	// UnlinkGroup clears group id and confidence for every member of a group,
	// returning the members to the unmatched pool. Returns the number of
	// records unlinked.
	UnlinkGroup(ctx context.Context, groupID string) (int64, error)

	// ProductsByGroup returns the members of a group.
	ProductsByGroup(ctx context.Context, groupID string) ([]model.ProductRecord, error)

	// Stats reports pool counts for the status command.
	Stats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

// identifierColumn maps the closed identifier field set to its column. Query
// text never incorporates caller-supplied field names.
func identifierColumn(field model.IdentifierField) (string, error) {
	switch field {
	case model.FieldManufacturerSKU:
		return "manufacturer_sku", nil
	case model.FieldUpcEan:
		return "upc_ean", nil
	default:
		return "", eris.Errorf("store: unknown identifier field %q", field)
	}
}
