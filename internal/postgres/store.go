// Package postgres implements store.Store on PostgreSQL. Settlement locks the
// order row and every catalog row it touches with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

var _ store.Store = (*Store)(nil)

// Open connects and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}

type row interface {
	Scan(dest ...any) error
}

const entryColumns = `sku, name, base_price_cents, stock, image`

func scanEntry(r row) (catalog.Entry, error) {
	var (
		e     catalog.Entry
		stock []byte
	)
	if err := r.Scan(&e.SKU, &e.Name, &e.BasePriceCents, &stock, &e.Image); err != nil {
		return e, err
	}
	if err := json.Unmarshal(stock, &e.Stock); err != nil {
		return e, fmt.Errorf("decode stock of %s: %w", e.SKU, err)
	}
	return e, nil
}

const orderColumns = `id, status, items, subtotal_cents, customer_email, payment_session_id, created_at, paid_at, failed_at`

func scanOrder(r row) (orders.Order, error) {
	var (
		o     orders.Order
		items []byte
	)
	err := r.Scan(&o.ID, &o.Status, &items, &o.SubtotalCents, &o.CustomerEmail, &o.PaymentSessionID,
		&o.CreatedAt, &o.PaidAt, &o.FailedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, orders.ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if o.PaidAt != nil {
		t := o.PaidAt.UTC()
		o.PaidAt = &t
	}
	if o.FailedAt != nil {
		t := o.FailedAt.UTC()
		o.FailedAt = &t
	}
	return o, nil
}

func (s *Store) ListCatalog(ctx context.Context) (map[string]catalog.Entry, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+entryColumns+` FROM catalog ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()
	out := map[string]catalog.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[e.SKU] = e
	}
	return out, rows.Err()
}

func (s *Store) GetEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+entryColumns+` FROM catalog WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()
	out := make(map[string]catalog.Entry, len(skus))
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[e.SKU] = e
	}
	return out, rows.Err()
}

const upsertEntry = `
	INSERT INTO catalog (sku, name, base_price_cents, stock, image, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (sku) DO UPDATE SET
		name = EXCLUDED.name,
		base_price_cents = EXCLUDED.base_price_cents,
		stock = EXCLUDED.stock,
		image = EXCLUDED.image,
		updated_at = now()`

func putEntry(ctx context.Context, tx pgx.Tx, e catalog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	stock, err := json.Marshal(e.Stock)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertEntry, e.SKU, e.Name, e.BasePriceCents, stock, e.Image); err != nil {
		return fmt.Errorf("failed to write catalog entry %s: %w", e.SKU, err)
	}
	return nil
}

func (s *Store) UpsertEntries(ctx context.Context, entries []catalog.Entry) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		for _, e := range entries {
			if err := putEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO orders (id, status, items, subtotal_cents, customer_email, payment_session_id, created_at, paid_at, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Status, items, o.SubtotalCents, o.CustomerEmail, o.PaymentSessionID, o.CreatedAt, o.PaidAt, o.FailedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *Store) AttachSession(ctx context.Context, id, sessionID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET payment_session_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, sessionID)
	if err != nil {
		return fmt.Errorf("failed to attach session to %s: %w", id, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return orders.ErrNotFound
	}
	return nil
}

func (s *Store) ExpirePending(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		UPDATE orders SET status = 'failed', failed_at = $2, updated_at = now()
		WHERE status = 'pending' AND created_at < $1
		RETURNING id`, cutoff, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

// LockEntries locks rows one by one in SKU order so two settlements over
// overlapping SKUs always acquire locks in the same sequence.
func (t *pgTx) LockEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error) {
	sorted := slices.Clone(skus)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	out := make(map[string]catalog.Entry, len(sorted))
	for _, sku := range sorted {
		e, err := scanEntry(t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM catalog WHERE sku = $1 FOR UPDATE`, sku))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", sku, err)
		}
		out[sku] = e
	}
	return out, nil
}

func (t *pgTx) PutEntry(ctx context.Context, e catalog.Entry) error {
	return putEntry(ctx, t.tx, e)
}

func (t *pgTx) PutOrder(ctx context.Context, o orders.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			status = $2, items = $3, subtotal_cents = $4, customer_email = $5,
			payment_session_id = $6, paid_at = $7, failed_at = $8, updated_at = now()
		WHERE id = $1`,
		o.ID, o.Status, items, o.SubtotalCents, o.CustomerEmail, o.PaymentSessionID, o.PaidAt, o.FailedAt)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}
