package housekeeping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/card-market/internal/memstore"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
)

type forgetLog struct {
	mu  sync.Mutex
	ids []string
}

func (f *forgetLog) Forget(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

var now = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func seedOrders(t *testing.T, st *memstore.Store) {
	t.Helper()
	for id, age := range map[string]time.Duration{"old": 30 * time.Hour, "fresh": time.Hour} {
		o := orders.Order{ID: id, Status: orders.StatusPending, CreatedAt: now.Add(-age)}
		if err := st.InsertOrder(context.Background(), o); err != nil {
			t.Fatal(err)
		}
	}
	paid := now.Add(-40 * time.Hour)
	o := orders.Order{ID: "paid", Status: orders.StatusPaid, CreatedAt: paid, PaidAt: &paid}
	if err := st.InsertOrder(context.Background(), o); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnce(t *testing.T) {
	st := memstore.New()
	seedOrders(t, st)
	cache := &forgetLog{}
	s := &Sweeper{Store: st, TTL: 24 * time.Hour, Cache: cache, Now: func() time.Time { return now }, Log: obs.Discard()}

	ids, err := s.RunOnce(context.Background(), s.TTL)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expired = %v", ids)
	}
	o, _ := st.GetOrder(context.Background(), "old")
	if o.Status != orders.StatusFailed || o.FailedAt == nil || !o.FailedAt.Equal(now) {
		t.Fatalf("old = %+v", o)
	}
	if o, _ := st.GetOrder(context.Background(), "fresh"); o.Status != orders.StatusPending {
		t.Fatalf("fresh = %s", o.Status)
	}
	if o, _ := st.GetOrder(context.Background(), "paid"); o.Status != orders.StatusPaid {
		t.Fatalf("paid = %s", o.Status)
	}
	if len(cache.ids) != 1 || cache.ids[0] != "old" {
		t.Fatalf("forgotten = %v", cache.ids)
	}

	// Second sweep finds nothing new.
	if ids, _ := s.RunOnce(context.Background(), s.TTL); len(ids) != 0 {
		t.Fatalf("second sweep = %v", ids)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	st := memstore.New()
	seedOrders(t, st)
	s := &Sweeper{Store: st, TTL: 24 * time.Hour, Interval: 5 * time.Millisecond, Now: func() time.Time { return now }, Log: obs.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o, _ := st.GetOrder(context.Background(), "old"); o.Status == orders.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if o, _ := st.GetOrder(context.Background(), "old"); o.Status != orders.StatusFailed {
		t.Fatal("ticker never swept")
	}
}

func TestRunDisabled(t *testing.T) {
	s := &Sweeper{Store: memstore.New(), Log: obs.Discard()}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}
