package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are RFC 3339 UTC text.
const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	sku              TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	base_price_cents INTEGER NOT NULL CHECK (base_price_cents >= 0),
	stock            TEXT NOT NULL DEFAULT '0',
	image            TEXT NOT NULL DEFAULT '',
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'failed')),
	items              TEXT NOT NULL,
	subtotal_cents     INTEGER NOT NULL,
	customer_email     TEXT NOT NULL DEFAULT '',
	payment_session_id TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	paid_at            TEXT,
	failed_at          TEXT,
	updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS orders_status_created_at_idx ON orders (status, created_at);
`

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
