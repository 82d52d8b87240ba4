package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/db"
	"github.com/sells-group/product-match/internal/match"
	"github.com/sells-group/product-match/internal/model"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id               BIGSERIAL PRIMARY KEY,
	article_number   TEXT NOT NULL,
	retailer         TEXT NOT NULL,
	name             TEXT,
	manufacturer_sku TEXT,
	upc_ean          TEXT,
	width            TEXT,
	height           TEXT,
	depth            TEXT,
	length           TEXT,
	weight           TEXT,
	group_id         TEXT,
	match_confidence DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (retailer, article_number)
);

CREATE INDEX IF NOT EXISTS idx_products_group_id ON products(group_id);
CREATE INDEX IF NOT EXISTS idx_products_retailer ON products(retailer);
CREATE INDEX IF NOT EXISTS idx_products_sku_unmatched ON products(manufacturer_sku) WHERE group_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_products_upc_unmatched ON products(upc_ean) WHERE group_id IS NULL;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const productColumns = `id, article_number, retailer, name, manufacturer_sku, upc_ean,
	width, height, depth, length, weight, group_id, match_confidence, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.ProductRecord, error) {
	var p model.ProductRecord
	err := row.Scan(
		&p.ID, &p.ArticleNumber, &p.Retailer, &p.Name, &p.ManufacturerSKU, &p.UpcEan,
		&p.Dimensions.Width, &p.Dimensions.Height, &p.Dimensions.Depth,
		&p.Dimensions.Length, &p.Dimensions.Weight,
		&p.GroupID, &p.MatchConfidence, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) queryProducts(ctx context.Context, sql string, args ...any) ([]model.ProductRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ProductRecord
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *p)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*model.ProductRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %d", id)
	}
	return p, nil
}

func (s *PostgresStore) IdentifierClusters(ctx context.Context, field model.IdentifierField) ([]match.IdentifierCluster, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
SELECT %[1]s, COUNT(*), COUNT(DISTINCT retailer)
FROM products
WHERE group_id IS NULL AND %[1]s IS NOT NULL AND %[1]s != ''
GROUP BY %[1]s
HAVING COUNT(*) >= 2 AND COUNT(DISTINCT retailer) >= 2
ORDER BY %[1]s`, col)

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: identifier clusters for %s", field)
	}
	defer rows.Close()

	var clusters []match.IdentifierCluster
	for rows.Next() {
		var c match.IdentifierCluster
		if err := rows.Scan(&c.Value, &c.RecordCount, &c.RetailerCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identifier cluster")
		}
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "postgres: identifier clusters")
}

func (s *PostgresStore) UnmatchedByIdentifier(ctx context.Context, field model.IdentifierField, value string) ([]model.ProductRecord, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT `+productColumns+` FROM products WHERE group_id IS NULL AND %s = $1 ORDER BY id`, col)
	records, err := s.queryProducts(ctx, sql, value)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: unmatched by %s", field)
	}
	return records, nil
}

func (s *PostgresStore) CounterpartsByIdentifier(ctx context.Context, field model.IdentifierField, value string, excludeID int64, excludeRetailer string) ([]model.ProductRecord, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT `+productColumns+` FROM products WHERE %s = $1 AND id != $2 AND retailer != $3 ORDER BY id`, col)
	records, err := s.queryProducts(ctx, sql, value, excludeID, excludeRetailer)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: counterparts by %s", field)
	}
	return records, nil
}

func (s *PostgresStore) RetailersWithUnmatchedNamed(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT retailer FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != ''
ORDER BY retailer`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: retailers with unmatched named")
	}
	defer rows.Close()

	var retailers []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "postgres: scan retailer")
		}
		retailers = append(retailers, r)
	}
	return retailers, eris.Wrap(rows.Err(), "postgres: retailers with unmatched named")
}

func (s *PostgresStore) UnmatchedNamedByRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != '' AND retailer = $1
ORDER BY id LIMIT $2`, retailer, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: unmatched named for %s", retailer)
	}
	return records, nil
}

func (s *PostgresStore) UnmatchedNamedExcludingRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != '' AND retailer != $1
ORDER BY id LIMIT $2`, retailer, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: unmatched named excluding %s", retailer)
	}
	return records, nil
}

// AssignGroup writes group id and confidence to every listed record inside a
// transaction, conditional on each record still being unmatched. An affected
// row count below the member count means another caller grouped one of the
// records between our read and this write; the transaction rolls back and
// ErrGroupConflict is returned.
func (s *PostgresStore) AssignGroup(ctx context.Context, ids []int64, groupID string, confidence float64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: assign group: begin")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE products SET group_id = $1, match_confidence = $2, updated_at = now()
WHERE id = ANY($3) AND group_id IS NULL`, groupID, confidence, ids)
	if err != nil {
		return eris.Wrapf(err, "postgres: assign group %s", groupID)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return eris.Wrapf(ErrGroupConflict, "postgres: assign group %s: %d of %d records written",
			groupID, tag.RowsAffected(), len(ids))
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: assign group: commit")
}

var productInsertColumns = []string{
	"article_number", "retailer", "name", "manufacturer_sku", "upc_ean",
	"width", "height", "depth", "length", "weight", "updated_at",
}

func (s *PostgresStore) InsertProducts(ctx context.Context, records []model.ProductRecord) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(records))
	for i, p := range records {
		rows[i] = []any{
			p.ArticleNumber, p.Retailer, p.Name, p.ManufacturerSKU, p.UpcEan,
			p.Dimensions.Width, p.Dimensions.Height, p.Dimensions.Depth,
			p.Dimensions.Length, p.Dimensions.Weight, now,
		}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      productInsertColumns,
		ConflictKeys: []string{"retailer", "article_number"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert products")
	}
	return n, nil
}

func (s *PostgresStore) UnlinkGroup(ctx context.Context, groupID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE products SET group_id = NULL, match_confidence = NULL, updated_at = now()
WHERE group_id = $1`, groupID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: unlink group %s", groupID)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ProductsByGroup(ctx context.Context, groupID string) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: products by group %s", groupID)
	}
	return records, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{PerRetailer: map[string]int64{}}

	row := s.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE group_id IS NOT NULL),
       COUNT(DISTINCT group_id)
FROM products`)
	if err := row.Scan(&stats.Total, &stats.Matched, &stats.Groups); err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	stats.Unmatched = stats.Total - stats.Matched

	rows, err := s.pool.Query(ctx, `SELECT retailer, COUNT(*) FROM products GROUP BY retailer`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats per retailer")
	}
	defer rows.Close()
	for rows.Next() {
		var r string
		var n int64
		if err := rows.Scan(&r, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan retailer count")
		}
		stats.PerRetailer[r] = n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats per retailer")
}
