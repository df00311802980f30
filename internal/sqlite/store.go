// Package sqlite implements store.Store on an embedded SQLite file.
//
// Every transaction starts with BEGIN IMMEDIATE and the pool holds a single
// connection, so settlements are serialized by one database-wide write lock.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type row interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const entryColumns = `sku, name, base_price_cents, stock, image`

func scanEntry(r row) (catalog.Entry, error) {
	var (
		e     catalog.Entry
		stock string
	)
	if err := r.Scan(&e.SKU, &e.Name, &e.BasePriceCents, &stock, &e.Image); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(stock), &e.Stock); err != nil {
		return e, fmt.Errorf("decode stock of %s: %w", e.SKU, err)
	}
	return e, nil
}

const orderColumns = `id, status, items, subtotal_cents, customer_email, payment_session_id, created_at, paid_at, failed_at`

func scanOrder(r row) (orders.Order, error) {
	var (
		o                orders.Order
		items, created   string
		paidAt, failedAt sql.NullString
	)
	err := r.Scan(&o.ID, &o.Status, &items, &o.SubtotalCents, &o.CustomerEmail, &o.PaymentSessionID,
		&created, &paidAt, &failedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, orders.ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return o, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return o, err
	}
	if o.PaidAt, err = parseTimePtr(paidAt); err != nil {
		return o, err
	}
	if o.FailedAt, err = parseTimePtr(failedAt); err != nil {
		return o, err
	}
	return o, nil
}

func queryEntries(ctx context.Context, q execer, skus []string) (map[string]catalog.Entry, error) {
	out := make(map[string]catalog.Entry, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	args := make([]any, len(skus))
	for i, sku := range skus {
		args[i] = sku
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(skus)), ",")
	rows, err := q.QueryContext(ctx, `SELECT `+entryColumns+` FROM catalog WHERE sku IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[e.SKU] = e
	}
	return out, rows.Err()
}

func putEntry(ctx context.Context, q execer, e catalog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	stock, err := json.Marshal(e.Stock)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO catalog (sku, name, base_price_cents, stock, image, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (sku) DO UPDATE SET
			name = excluded.name,
			base_price_cents = excluded.base_price_cents,
			stock = excluded.stock,
			image = excluded.image,
			updated_at = excluded.updated_at`,
		e.SKU, e.Name, e.BasePriceCents, string(stock), e.Image, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to write catalog entry %s: %w", e.SKU, err)
	}
	return nil
}

func (s *Store) ListCatalog(ctx context.Context) (map[string]catalog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM catalog ORDER BY sku`)
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
	return queryEntries(ctx, s.db, skus)
}

func (s *Store) UpsertEntries(ctx context.Context, entries []catalog.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, status, items, subtotal_cents, customer_email, payment_session_id, created_at, paid_at, failed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Status), string(items), o.SubtotalCents, o.CustomerEmail, o.PaymentSessionID,
		formatTime(o.CreatedAt), formatTimePtr(o.PaidAt), formatTimePtr(o.FailedAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

func (s *Store) AttachSession(ctx context.Context, id, sessionID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return orders.ErrNotFound
		}
		if err != nil {
			return err
		}
		if orders.Status(status) != orders.StatusPending {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE orders SET payment_session_id = ?, updated_at = ? WHERE id = ?`,
			sessionID, formatTime(time.Now()), id)
		return err
	})
}

func (s *Store) ExpirePending(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	var ids []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, created_at FROM orders WHERE status = 'pending'`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, created string
			if err := rows.Scan(&id, &created); err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, created)
			if err != nil {
				return err
			}
			if t.Before(cutoff) {
				ids = append(ids, id)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				UPDATE orders SET status = 'failed', failed_at = ?, updated_at = ?
				WHERE id = ? AND status = 'pending'`, formatTime(now), formatTime(now), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending orders: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &sqliteTx{tx: tx})
	})
}

// sqliteTx needs no row locks: BEGIN IMMEDIATE already holds the write lock.
type sqliteTx struct{ tx *sql.Tx }

func (t *sqliteTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(t.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

func (t *sqliteTx) LockEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error) {
	return queryEntries(ctx, t.tx, slices.Compact(slices.Sorted(slices.Values(skus))))
}

func (t *sqliteTx) PutEntry(ctx context.Context, e catalog.Entry) error {
	return putEntry(ctx, t.tx, e)
}

func (t *sqliteTx) PutOrder(ctx context.Context, o orders.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET
			status = ?, items = ?, subtotal_cents = ?, customer_email = ?,
			payment_session_id = ?, paid_at = ?, failed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(o.Status), string(items), o.SubtotalCents, o.CustomerEmail, o.PaymentSessionID,
		formatTimePtr(o.PaidAt), formatTimePtr(o.FailedAt), formatTime(time.Now()), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return orders.ErrNotFound
	}
	return nil
}
