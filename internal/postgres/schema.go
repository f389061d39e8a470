package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; Migrate runs it on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		id         TEXT PRIMARY KEY,
		seller_id  TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id                TEXT PRIMARY KEY,
		store_id          TEXT NOT NULL,
		name              TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		category          TEXT NOT NULL DEFAULT '',
		images            TEXT[] NOT NULL DEFAULT '{}',
		price             NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		quantity          INTEGER NOT NULL CHECK (quantity >= 0),
		reserved_quantity INTEGER NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
		is_available      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_store_idx ON products(store_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id           TEXT PRIMARY KEY,
		customer_id  TEXT NOT NULL,
		store_id     TEXT NOT NULL,
		status       TEXT NOT NULL,
		total_amount NUMERIC(14,2) NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders(customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_store_idx ON orders(store_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   TEXT NOT NULL REFERENCES orders(id),
		line_no    INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		qty        INTEGER NOT NULL CHECK (qty > 0),
		image      TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, line_no)
	)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
