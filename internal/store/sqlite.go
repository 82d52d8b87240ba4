package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/product-match/internal/match"
	"github.com/sells-group/product-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-node
// deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
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
	match_confidence REAL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (retailer, article_number)
);

CREATE INDEX IF NOT EXISTS idx_products_group_id ON products(group_id);
CREATE INDEX IF NOT EXISTS idx_products_retailer ON products(retailer);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(manufacturer_sku);
CREATE INDEX IF NOT EXISTS idx_products_upc ON products(upc_ean);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProductRow(row rowScanner) (*model.ProductRecord, error) {
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

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...any) ([]model.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ProductRecord
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *p)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*model.ProductRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProductRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) IdentifierClusters(ctx context.Context, field model.IdentifierField) ([]match.IdentifierCluster, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT %[1]s, COUNT(*), COUNT(DISTINCT retailer)
FROM products
WHERE group_id IS NULL AND %[1]s IS NOT NULL AND %[1]s != ''
GROUP BY %[1]s
HAVING COUNT(*) >= 2 AND COUNT(DISTINCT retailer) >= 2
ORDER BY %[1]s`, col)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: identifier clusters for %s", field)
	}
	defer rows.Close()

	var clusters []match.IdentifierCluster
	for rows.Next() {
		var c match.IdentifierCluster
		if err := rows.Scan(&c.Value, &c.RecordCount, &c.RetailerCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identifier cluster")
		}
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "sqlite: identifier clusters")
}

func (s *SQLiteStore) UnmatchedByIdentifier(ctx context.Context, field model.IdentifierField, value string) ([]model.ProductRecord, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	records, err := s.queryProducts(ctx, fmt.Sprintf(
		`SELECT `+productColumns+` FROM products WHERE group_id IS NULL AND %s = ? ORDER BY id`, col), value)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmatched by %s", field)
	}
	return records, nil
}

func (s *SQLiteStore) CounterpartsByIdentifier(ctx context.Context, field model.IdentifierField, value string, excludeID int64, excludeRetailer string) ([]model.ProductRecord, error) {
	col, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	records, err := s.queryProducts(ctx, fmt.Sprintf(
		`SELECT `+productColumns+` FROM products WHERE %s = ? AND id != ? AND retailer != ? ORDER BY id`, col),
		value, excludeID, excludeRetailer)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: counterparts by %s", field)
	}
	return records, nil
}

func (s *SQLiteStore) RetailersWithUnmatchedNamed(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT retailer FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != ''
ORDER BY retailer`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: retailers with unmatched named")
	}
	defer rows.Close()

	var retailers []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan retailer")
		}
		retailers = append(retailers, r)
	}
	return retailers, eris.Wrap(rows.Err(), "sqlite: retailers with unmatched named")
}

func (s *SQLiteStore) UnmatchedNamedByRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != '' AND retailer = ?
ORDER BY id LIMIT ?`, retailer, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmatched named for %s", retailer)
	}
	return records, nil
}

func (s *SQLiteStore) UnmatchedNamedExcludingRetailer(ctx context.Context, retailer string, limit int) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products
WHERE group_id IS NULL AND name IS NOT NULL AND name != '' AND retailer != ?
ORDER BY id LIMIT ?`, retailer, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmatched named excluding %s", retailer)
	}
	return records, nil
}

// AssignGroup mirrors the Postgres conditional write: one UPDATE guarded by
// group_id IS NULL inside a transaction, rolled back unless every member row
// was still unmatched.
func (s *SQLiteStore) AssignGroup(ctx context.Context, ids []int64, groupID string, confidence float64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: assign group: begin")
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+3)
	args = append(args, groupID, confidence, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE products SET group_id = ?, match_confidence = ?, updated_at = ?
WHERE id IN (%s) AND group_id IS NULL`, placeholders), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: assign group %s", groupID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: assign group: rows affected")
	}
	if affected != int64(len(ids)) {
		return eris.Wrapf(ErrGroupConflict, "sqlite: assign group %s: %d of %d records written",
			groupID, affected, len(ids))
	}

	return eris.Wrap(tx.Commit(), "sqlite: assign group: commit")
}

func (s *SQLiteStore) InsertProducts(ctx context.Context, records []model.ProductRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert products: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO products (article_number, retailer, name, manufacturer_sku, upc_ean,
	width, height, depth, length, weight, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (retailer, article_number) DO UPDATE SET
	name = excluded.name,
	manufacturer_sku = excluded.manufacturer_sku,
	upc_ean = excluded.upc_ean,
	width = excluded.width,
	height = excluded.height,
	depth = excluded.depth,
	length = excluded.length,
	weight = excluded.weight,
	updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert products: prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, p := range records {
		if _, err := stmt.ExecContext(ctx,
			p.ArticleNumber, p.Retailer, p.Name, p.ManufacturerSKU, p.UpcEan,
			p.Dimensions.Width, p.Dimensions.Height, p.Dimensions.Depth,
			p.Dimensions.Length, p.Dimensions.Weight, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert product %s/%s", p.Retailer, p.ArticleNumber)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert products: commit")
	}
	return n, nil
}

func (s *SQLiteStore) UnlinkGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE products SET group_id = NULL, match_confidence = NULL, updated_at = ?
WHERE group_id = ?`, time.Now().UTC(), groupID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: unlink group %s", groupID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: unlink group: rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) ProductsByGroup(ctx context.Context, groupID string) ([]model.ProductRecord, error) {
	records, err := s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: products by group %s", groupID)
	}
	return records, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{PerRetailer: map[string]int64{}}

	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(group_id),
       COUNT(DISTINCT group_id)
FROM products`)
	if err := row.Scan(&stats.Total, &stats.Matched, &stats.Groups); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	stats.Unmatched = stats.Total - stats.Matched

	rows, err := s.db.QueryContext(ctx, `SELECT retailer, COUNT(*) FROM products GROUP BY retailer`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats per retailer")
	}
	defer rows.Close()
	for rows.Next() {
		var r string
		var n int64
		if err := rows.Scan(&r, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan retailer count")
		}
		stats.PerRetailer[r] = n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats per retailer")
}
