package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/pricing"
	"github.com/ariefcatur/card-market/internal/store"
	"github.com/ariefcatur/card-market/internal/store/storetest"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "market.db"))
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "market.db")

	s := openTestStore(t, path)
	if err := s.UpsertEntries(ctx, []catalog.Entry{
		{SKU: "X", Name: "Mewtwo", BasePriceCents: 500, Stock: catalog.CountStock(map[string]int{"NM": 5})},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created := time.Date(2026, 5, 1, 9, 30, 0, 123456789, time.UTC)
	if err := s.InsertOrder(ctx, orders.Order{
		ID: "o-1", Status: orders.StatusPending, SubtotalCents: 1000, CreatedAt: created,
		Items: []orders.Item{{SKU: "X", Qty: 2, Condition: pricing.NearMint}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = openTestStore(t, path)
	defer s.Close()
	o, err := s.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !o.CreatedAt.Equal(created) || o.Items[0].Qty != 2 {
		t.Fatalf("unexpected order after reopen: %+v", o)
	}
	entries, err := s.GetEntries(ctx, []string{"X"})
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if entries["X"].Available(pricing.NearMint) != 5 {
		t.Fatalf("unexpected stock after reopen: %+v", entries["X"])
	}
}
