package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	sku              TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	base_price_cents BIGINT NOT NULL CHECK (base_price_cents >= 0),
	stock            JSONB NOT NULL DEFAULT '0',
	image            TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'failed')),
	items              JSONB NOT NULL,
	subtotal_cents     BIGINT NOT NULL,
	customer_email     TEXT NOT NULL DEFAULT '',
	payment_session_id TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	paid_at            TIMESTAMPTZ,
	failed_at          TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_pending_created_at_idx
	ON orders (created_at) WHERE status = 'pending';
`

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
