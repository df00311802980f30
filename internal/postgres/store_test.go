package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/card-market/internal/store"
	"github.com/ariefcatur/card-market/internal/store/storetest"
)

// Runs only against a disposable database: TEST_POSTGRES_DSN=postgres://...
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := s.DB.Exec(ctx, `TRUNCATE catalog, orders`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
