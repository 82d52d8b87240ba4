package match

import (
	"context"

	"github.com/sells-group/product-match/internal/model"
)

// IdentifierCluster is one distinct identifier value held by unmatched
// records, with how widely it is held. Produced by the store's grouped-count
// query for the batch exact matcher.
type IdentifierCluster struct {
	Value         string
	RecordCount   int
	RetailerCount int
}

// Store is the persistence surface the matching engine consumes. Implementations
// must restrict candidate queries to records whose group identifier is null and
// must make AssignGroup atomic and conditional (see internal/store).
type Store interface {
	// GetProduct returns the record with the given id, or nil when absent.
	GetProduct(ctx context.Context, id int64) (*model.ProductRecord, error)

	// IdentifierClusters returns every distinct non-empty value of the given
	// identifier field held by at least two unmatched records from at least
	// two distinct retailers.
	IdentifierClusters(ctx context.Context, field model.IdentifierField) ([]IdentifierCluster, error)

	// UnmatchedByIdentifier returns the unmatched records holding the given
	// identifier value.
	UnmatchedByIdentifier(ctx context.Context, field model.IdentifierField, value string) ([]model.ProductRecord, error)

	// CounterpartsByIdentifier returns records (matched or not) holding the
	// given identifier value, excluding the given record and its retailer.
	CounterpartsByIdentifier(ctx context.Context, field model.IdentifierField, value string, excludeID int64, excludeRetailer string) ([]model.ProductRecord, error)

	// RetailersWithUnmatchedNamed returns the retailer slugs that currently
	// hold at least one unmatched record with a non-null name.
	RetailersWithUnmatchedNamed(ctx context.Context) ([]string, error)

	// UnmatchedNamedByRetailer returns up to limit unmatched, named records
	// for one retailer.
	UnmatchedNamedByRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error)

	// UnmatchedNamedExcludingRetailer returns up to limit unmatched, named
	// records from every retailer except the given one.
	UnmatchedNamedExcludingRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error)

	// AssignGroup writes groupID and confidence to every listed record as one
	// atomic unit, conditional on each record still being unmatched. Partial
	// application is never visible.
	AssignGroup(ctx context.Context, ids []int64, groupID string, confidence float64) error
}
