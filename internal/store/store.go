// Package store defines the persistence contract of the catalog and the order
// ledger. Implementations live in internal/postgres, internal/sqlite and
// internal/memstore.
package store

import (
	"context"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
)

type Store interface {
	ListCatalog(ctx context.Context) (map[string]catalog.Entry, error)
	// GetEntries returns the entries that exist among skus; absent SKUs are
	// simply missing from the result.
	GetEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error)
	UpsertEntries(ctx context.Context, entries []catalog.Entry) error

	InsertOrder(ctx context.Context, o orders.Order) error
	// GetOrder returns orders.ErrNotFound for unknown ids.
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	// AttachSession records the provider session id on a pending order.
	AttachSession(ctx context.Context, id, sessionID string) error
	// ExpirePending fails every pending order created before cutoff and returns their ids.
	ExpirePending(ctx context.Context, cutoff, now time.Time) ([]string, error)

	// WithinTx runs fn in one transaction. Writes made through tx become
	// visible together when fn returns nil and are discarded otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// Tx is the locked view used by settlement. Locks taken by LockOrder and
// LockEntries are held until the enclosing WithinTx returns.
type Tx interface {
	LockOrder(ctx context.Context, id string) (orders.Order, error)
	LockEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error)
	PutEntry(ctx context.Context, e catalog.Entry) error
	PutOrder(ctx context.Context, o orders.Order) error
}
