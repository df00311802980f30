// Package storetest is a conformance suite every store.Store implementation runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/pricing"
	"github.com/ariefcatur/card-market/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CatalogRoundTrip", testCatalogRoundTrip},
		{"OrderRoundTrip", testOrderRoundTrip},
		{"AttachSession", testAttachSession},
		{"TxCommit", testTxCommit},
		{"TxRollback", testTxRollback},
		{"ExpirePending", testExpirePending},
		{"ConcurrentDecrement", testConcurrentDecrement},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

// ts builds whole-hour UTC times so every backend round-trips them exactly.
func ts(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, s store.Store, entries ...catalog.Entry) {
	t.Helper()
	if err := s.UpsertEntries(context.Background(), entries); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newOrder(id string, created time.Time) orders.Order {
	return orders.Order{
		ID:     id,
		Status: orders.StatusPending,
		Items: []orders.Item{
			{SKU: "X", Qty: 2, Condition: pricing.NearMint},
			{SKU: "Y", Qty: 1, Condition: pricing.HeavilyPlayed},
		},
		SubtotalCents: 1650,
		CustomerEmail: "buyer@example.com",
		CreatedAt:     created,
	}
}

func testCatalogRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s,
		catalog.Entry{SKU: "X", Name: "Charizard", BasePriceCents: 500, Stock: catalog.CountStock(map[string]int{"NM": 5, "LP": 1}), Image: "img/x.png"},
		catalog.Entry{SKU: "Y", Name: "Squirtle", BasePriceCents: 1000, Stock: catalog.FlatStock(3)},
	)

	got, err := s.GetEntries(ctx, []string{"X", "Y", "missing"})
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	x := got["X"]
	if x.SKU != "X" || x.Name != "Charizard" || x.BasePriceCents != 500 || x.Image != "img/x.png" {
		t.Fatalf("unexpected X: %+v", x)
	}
	if x.Stock.IsFlat() || x.Available(pricing.NearMint) != 5 || x.Available(pricing.LightlyPlayed) != 1 {
		t.Fatalf("unexpected X stock: %+v", x.Stock)
	}
	if y := got["Y"]; !y.Stock.IsFlat() || y.Available(pricing.ModeratelyPlayed) != 3 {
		t.Fatalf("unexpected Y stock: %+v", y.Stock)
	}

	// whole-record replace
	seed(t, s, catalog.Entry{SKU: "Y", Name: "Squirtle", BasePriceCents: 1200, Stock: catalog.FlatStock(1)})
	all, err := s.ListCatalog(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all["Y"].BasePriceCents != 1200 || all["Y"].Available(pricing.NearMint) != 1 {
		t.Fatalf("unexpected catalog: %+v", all)
	}

	if err := s.UpsertEntries(ctx, []catalog.Entry{{SKU: "Z", BasePriceCents: -1}}); err == nil {
		t.Fatalf("expected negative price to be rejected")
	}
}

func testOrderRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := newOrder("o-1", ts(2026, 3, 1, 10))
	if err := s.InsertOrder(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertOrder(ctx, o); err == nil {
		t.Fatalf("duplicate insert should fail")
	}

	got, err := s.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != orders.StatusPending || got.SubtotalCents != 1650 || got.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected order %+v", got)
	}
	if len(got.Items) != 2 || got.Items[1] != o.Items[1] {
		t.Fatalf("unexpected items %+v", got.Items)
	}
	if !got.CreatedAt.Equal(o.CreatedAt) || got.PaidAt != nil {
		t.Fatalf("unexpected timestamps %+v", got)
	}

	if _, err := s.GetOrder(ctx, "nope"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testAttachSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.InsertOrder(ctx, newOrder("o-1", ts(2026, 3, 1, 10))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.AttachSession(ctx, "o-1", "cs_test_1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ := s.GetOrder(ctx, "o-1")
	if got.PaymentSessionID != "cs_test_1" {
		t.Fatalf("session not attached: %+v", got)
	}
	if err := s.AttachSession(ctx, "nope", "cs"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, catalog.Entry{SKU: "X", Name: "X", BasePriceCents: 500, Stock: catalog.CountStock(map[string]int{"NM": 5})})
	if err := s.InsertOrder(ctx, newOrder("o-1", ts(2026, 3, 1, 10))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	paidAt := ts(2026, 3, 1, 11)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, "o-1")
		if err != nil {
			return err
		}
		entries, err := tx.LockEntries(ctx, []string{"X"})
		if err != nil {
			return err
		}
		x, err := entries["X"].Take(pricing.NearMint, 2)
		if err != nil {
			return err
		}
		if err := tx.PutEntry(ctx, x); err != nil {
			return err
		}
		next, _, err := o.Apply(orders.Paid{At: paidAt})
		if err != nil {
			return err
		}
		return tx.PutOrder(ctx, next)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	got, _ := s.GetOrder(ctx, "o-1")
	if got.Status != orders.StatusPaid || got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
		t.Fatalf("order not committed: %+v", got)
	}
	entries, _ := s.GetEntries(ctx, []string{"X"})
	if n := entries["X"].Available(pricing.NearMint); n != 3 {
		t.Fatalf("stock = %d, want 3", n)
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.LockOrder(ctx, "missing")
		return err
	})
	if !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from tx, got %v", err)
	}
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, catalog.Entry{SKU: "X", Name: "X", BasePriceCents: 500, Stock: catalog.FlatStock(5)})
	if err := s.InsertOrder(ctx, newOrder("o-1", ts(2026, 3, 1, 10))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, "o-1")
		if err != nil {
			return err
		}
		if err := tx.PutEntry(ctx, catalog.Entry{SKU: "X", Name: "X", BasePriceCents: 500, Stock: catalog.FlatStock(0)}); err != nil {
			return err
		}
		next, _, _ := o.Apply(orders.Paid{At: ts(2026, 3, 1, 11)})
		if err := tx.PutOrder(ctx, next); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.GetOrder(ctx, "o-1")
	if got.Status != orders.StatusPending {
		t.Fatalf("rolled back order is %s", got.Status)
	}
	entries, _ := s.GetEntries(ctx, []string{"X"})
	if n := entries["X"].Available(pricing.NearMint); n != 5 {
		t.Fatalf("rolled back stock = %d, want 5", n)
	}
}

func testExpirePending(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, o := range []orders.Order{
		newOrder("old", ts(2026, 3, 1, 0)),
		newOrder("fresh", ts(2026, 3, 2, 0)),
	} {
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	paid := newOrder("old-paid", ts(2026, 3, 1, 0))
	paidAt := ts(2026, 3, 1, 1)
	paid.Status, paid.PaidAt = orders.StatusPaid, &paidAt
	if err := s.InsertOrder(ctx, paid); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now := ts(2026, 3, 2, 12)
	ids, err := s.ExpirePending(ctx, ts(2026, 3, 1, 12), now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expired %v, want [old]", ids)
	}
	old, _ := s.GetOrder(ctx, "old")
	if old.Status != orders.StatusFailed || old.FailedAt == nil || !old.FailedAt.Equal(now) {
		t.Fatalf("unexpected expired order %+v", old)
	}
	if p, _ := s.GetOrder(ctx, "old-paid"); p.Status != orders.StatusPaid {
		t.Fatalf("paid order touched: %+v", p)
	}
	if f, _ := s.GetOrder(ctx, "fresh"); f.Status != orders.StatusPending {
		t.Fatalf("fresh order touched: %+v", f)
	}
}

// testConcurrentDecrement races more takers than there is stock. Exactly the
// stock count must win and the counter must end at zero.
func testConcurrentDecrement(t *testing.T, s store.Store) {
	ctx := context.Background()
	const stock, takers = 5, 12
	seed(t, s, catalog.Entry{SKU: "Y", Name: "Y", BasePriceCents: 100, Stock: catalog.CountStock(map[string]int{"NM": stock})})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < takers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
				entries, err := tx.LockEntries(ctx, []string{"Y"})
				if err != nil {
					return err
				}
				next, err := entries["Y"].Take(pricing.NearMint, 1)
				if err != nil {
					return err
				}
				return tx.PutEntry(ctx, next)
			})
			var ise *catalog.InsufficientStockError
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case errors.As(err, &ise):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != stock {
		t.Fatalf("wins = %d, want %d", wins, stock)
	}
	entries, _ := s.GetEntries(ctx, []string{"Y"})
	if n := entries["Y"].Available(pricing.NearMint); n != 0 {
		t.Fatalf("final stock = %d, want 0", n)
	}
}
