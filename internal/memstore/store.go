// Package memstore is a non-durable Store used by tests and local runs.
// A single write lock stands in for the transaction boundary.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	catalog map[string]catalog.Entry
	orders  map[string]orders.Order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		catalog: make(map[string]catalog.Entry),
		orders:  make(map[string]orders.Order),
	}
}

func (s *Store) ListCatalog(ctx context.Context) (map[string]catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]catalog.Entry, len(s.catalog))
	for k, e := range s.catalog {
		out[k] = e
	}
	return out, nil
}

func (s *Store) GetEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries(skus), nil
}

func (s *Store) entries(skus []string) map[string]catalog.Entry {
	out := make(map[string]catalog.Entry, len(skus))
	for _, sku := range skus {
		if e, ok := s.catalog[sku]; ok {
			out[sku] = e
		}
	}
	return out
}

func (s *Store) UpsertEntries(ctx context.Context, entries []catalog.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.catalog[e.SKU] = e
	}
	return nil
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("insert order %s: already exists", o.ID)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) AttachSession(ctx context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status == orders.StatusPending {
		o.PaymentSessionID = sessionID
		s.orders[id] = o
	}
	return nil
}

func (s *Store) ExpirePending(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, o := range s.orders {
		if o.Status != orders.StatusPending || !o.CreatedAt.Before(cutoff) {
			continue
		}
		next, _, err := o.Apply(orders.Failed{At: now, Reason: "expired"})
		if err != nil {
			return nil, err
		}
		s.orders[id] = next
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s, entries: map[string]catalog.Entry{}, orders: map[string]orders.Order{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, e := range tx.entries {
		s.catalog[k] = e
	}
	for k, o := range tx.orders {
		s.orders[k] = o
	}
	return nil
}

func (s *Store) Close() error { return nil }

// memTx stages writes until WithinTx commits them.
type memTx struct {
	s       *Store
	entries map[string]catalog.Entry
	orders  map[string]orders.Order
}

func (t *memTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o.Clone(), nil
	}
	o, ok := t.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o.Clone(), nil
}

func (t *memTx) LockEntries(ctx context.Context, skus []string) (map[string]catalog.Entry, error) {
	out := t.s.entries(skus)
	for _, sku := range skus {
		if e, ok := t.entries[sku]; ok {
			out[sku] = e
		}
	}
	return out, nil
}

func (t *memTx) PutEntry(ctx context.Context, e catalog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	t.entries[e.SKU] = e
	return nil
}

func (t *memTx) PutOrder(ctx context.Context, o orders.Order) error {
	if _, ok := t.s.orders[o.ID]; !ok {
		return orders.ErrNotFound
	}
	t.orders[o.ID] = o.Clone()
	return nil
}
