// Package catalogdb mirrors committed catalog items into Postgres.
package catalogdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_products (
	sku           TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	price         TEXT NOT NULL,
	description   TEXT NOT NULL,
	main_category TEXT NOT NULL,
	gender        TEXT NOT NULL,
	product_type  TEXT NOT NULL,
	sizes         TEXT[] NOT NULL,
	fabrics       TEXT[] NOT NULL,
	product_url   TEXT NOT NULL,
	scraped_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS catalog_variants (
	sku        TEXT NOT NULL REFERENCES catalog_products(sku) ON DELETE CASCADE,
	size       TEXT NOT NULL,
	fabric     TEXT NOT NULL,
	base_price TEXT NOT NULL,
	PRIMARY KEY (sku, size, fabric)
);
CREATE TABLE IF NOT EXISTS catalog_images (
	sku        TEXT NOT NULL REFERENCES catalog_products(sku) ON DELETE CASCADE,
	label      TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	filename   TEXT NOT NULL,
	hosted_url TEXT,
	PRIMARY KEY (sku, label)
);`

const upsertProduct = `
INSERT INTO catalog_products (sku, name, price, description, main_category, gender, product_type, sizes, fabrics, product_url, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (sku) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	description = EXCLUDED.description,
	main_category = EXCLUDED.main_category,
	gender = EXCLUDED.gender,
	product_type = EXCLUDED.product_type,
	sizes = EXCLUDED.sizes,
	fabrics = EXCLUDED.fabrics,
	product_url = EXCLUDED.product_url,
	scraped_at = EXCLUDED.scraped_at`

// Statement is one queued query.
type Statement struct {
	SQL  string
	Args []any
}

// Store writes items to Postgres. Each item is replaced atomically.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: logger.With("component", "catalogdb"),
		now:    time.Now,
	}, nil
}

// EnsureSchema creates the catalog tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Notify upserts item with its variants and images in one transaction.
func (s *Store) Notify(ctx context.Context, item *models.ScrapedItem) error {
	statements := Statements(item, s.now())

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range statements {
			batch.Queue(st.SQL, st.Args...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", item.Record.SKU, err)
	}

	s.logger.Debug("item mirrored", "sku", item.Record.SKU, "statements", len(statements))
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Statements returns the queries that replace item's rows.
func Statements(item *models.ScrapedItem, at time.Time) []Statement {
	r := item.Record
	out := make([]Statement, 0, 3+len(item.Variants)+len(item.Images))

	out = append(out, Statement{
		SQL: upsertProduct,
		Args: []any{
			r.SKU, r.Name, r.Price, r.Description,
			r.Category.Main, r.Category.Gender, r.Category.ProductType,
			nonNil(r.Sizes), nonNil(r.Fabrics), r.SourceURL, at.UTC(),
		},
	})

	out = append(out, Statement{SQL: `DELETE FROM catalog_variants WHERE sku = $1`, Args: []any{r.SKU}})
	for _, v := range item.Variants {
		out = append(out, Statement{
			SQL:  `INSERT INTO catalog_variants (sku, size, fabric, base_price) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			Args: []any{v.SKU, v.Size, v.Fabric, v.Price},
		})
	}

	out = append(out, Statement{SQL: `DELETE FROM catalog_images WHERE sku = $1`, Args: []any{r.SKU}})
	for _, img := range item.Images {
		out = append(out, Statement{
			SQL:  `INSERT INTO catalog_images (sku, label, image_url, filename, hosted_url) VALUES ($1, $2, $3, $4, $5)`,
			Args: []any{r.SKU, img.Label, img.SourceURL, img.Filename, nullable(img.HostedURL)},
		})
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
