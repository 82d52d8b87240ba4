package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRowsIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "products",
		Columns:      []string{"a"},
		ConflictKeys: []string{"a"},
	}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_ValidatesConfig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	rows := [][]any{{"x"}}

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "products", ConflictKeys: []string{"a"}}, rows)
	assert.Error(t, err)

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "products", Columns: []string{"a"}}, rows)
	assert.Error(t, err)
}

func TestBulkUpsert_TempTableFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	cols := []string{"article_number", "retailer", "name"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_products"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_products"}, cols).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "products"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "products",
		Columns:      cols,
		ConflictKeys: []string{"retailer", "article_number"},
	}, [][]any{
		{"A1", "ikea", "Billy"},
		{"B1", "wayfair", "Billy"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_UpdateClauseExcludesConflictKeys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	cols := []string{"article_number", "retailer", "name"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_products"}, cols).WillReturnResult(1)
	// Only "name" lands in the DO UPDATE SET list.
	mock.ExpectExec(`DO UPDATE SET "name" = EXCLUDED."name"$`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "products",
		Columns:      cols,
		ConflictKeys: []string{"retailer", "article_number"},
	}, [][]any{{"A1", "ikea", "Billy"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"products"`, sanitizeTable("products"))
	assert.Equal(t, `"catalog"."products"`, sanitizeTable("catalog.products"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"a", "b"`, quoteAndJoin([]string{"a", "b"}))
}
