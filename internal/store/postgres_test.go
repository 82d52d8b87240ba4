package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/model"
)

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPostgresFromPool(mock), mock
}

var productRowColumns = []string{
	"id", "article_number", "retailer", "name", "manufacturer_sku", "upc_ean",
	"width", "height", "depth", "length", "weight",
	"group_id", "match_confidence", "created_at", "updated_at",
}

func TestIdentifierColumn_ClosedSet(t *testing.T) {
	col, err := identifierColumn(model.FieldManufacturerSKU)
	require.NoError(t, err)
	assert.Equal(t, "manufacturer_sku", col)

	col, err = identifierColumn(model.FieldUpcEan)
	require.NoError(t, err)
	assert.Equal(t, "upc_ean", col)

	_, err = identifierColumn(model.IdentifierField("name; DROP TABLE products"))
	assert.Error(t, err)
}

func TestPostgresStore_AssignGroup_AllRowsWritten(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET group_id").
		WithArgs("g1", 1.0, []int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err := store.AssignGroup(context.Background(), []int64{1, 2}, "g1", 1.0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AssignGroup_ConflictRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	// One of the two rows was grouped by a concurrent caller: the UPDATE's
	// group_id IS NULL guard only touches one row.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET group_id").
		WithArgs("g1", 0.9, []int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	err := store.AssignGroup(context.Background(), []int64{1, 2}, "g1", 0.9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGroupConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AssignGroup_EmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.AssignGroup(context.Background(), nil, "g1", 1.0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AssignGroup_ExecError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET group_id").
		WithArgs("g1", 1.0, []int64{1}).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.AssignGroup(context.Background(), []int64{1}, "g1", 1.0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrGroupConflict))
}

func TestPostgresStore_GetProduct_Found(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("FROM products WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(productRowColumns).AddRow(
			int64(7), "A1", "ikea", strPtr("Billy Bookcase"), strPtr("SKU-100"), nil,
			strPtr("80 cm"), nil, nil, nil, nil,
			nil, nil, now, now,
		))

	p, err := store.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "ikea", p.Retailer)
	assert.Equal(t, "Billy Bookcase", *p.Name)
	assert.Equal(t, "80 cm", *p.Dimensions.Width)
	assert.False(t, p.Matched())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProduct_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM products WHERE id").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	p, err := store.GetProduct(context.Background(), 99)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestPostgresStore_IdentifierClusters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("COUNT\\(DISTINCT retailer\\)").
		WillReturnRows(pgxmock.NewRows([]string{"value", "records", "retailers"}).
			AddRow("SKU-100", 3, 2).
			AddRow("SKU-200", 2, 2))

	clusters, err := store.IdentifierClusters(context.Background(), model.FieldManufacturerSKU)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "SKU-100", clusters[0].Value)
	assert.Equal(t, 3, clusters[0].RecordCount)
	assert.Equal(t, 2, clusters[0].RetailerCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IdentifierClusters_UnknownField(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.IdentifierClusters(context.Background(), model.IdentifierField("bogus"))
	assert.Error(t, err)
}

func TestPostgresStore_UnmatchedByIdentifier(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("WHERE group_id IS NULL AND manufacturer_sku").
		WithArgs("SKU-100").
		WillReturnRows(pgxmock.NewRows(productRowColumns).
			AddRow(int64(1), "A1", "ikea", nil, strPtr("SKU-100"), nil,
				nil, nil, nil, nil, nil, nil, nil, now, now).
			AddRow(int64(2), "B1", "wayfair", nil, strPtr("SKU-100"), nil,
				nil, nil, nil, nil, nil, nil, nil, now, now))

	records, err := store.UnmatchedByIdentifier(context.Background(), model.FieldManufacturerSKU, "SKU-100")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "wayfair", records[1].Retailer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RetailersWithUnmatchedNamed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT retailer FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"retailer"}).
			AddRow("amazon").AddRow("ikea").AddRow("wayfair"))

	retailers, err := store.RetailersWithUnmatchedNamed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"amazon", "ikea", "wayfair"}, retailers)
}

func TestPostgresStore_UnlinkGroup(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("SET group_id = NULL").
		WithArgs("g1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.UnlinkGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"total", "matched", "groups"}).
			AddRow(int64(10), int64(6), int64(3)))
	mock.ExpectQuery("GROUP BY retailer").
		WillReturnRows(pgxmock.NewRows([]string{"retailer", "count"}).
			AddRow("ikea", int64(6)).
			AddRow("wayfair", int64(4)))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(6), stats.Matched)
	assert.Equal(t, int64(4), stats.Unmatched)
	assert.Equal(t, int64(3), stats.Groups)
	assert.Equal(t, int64(6), stats.PerRetailer["ikea"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
