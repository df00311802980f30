package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/card-market/internal/orders"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Open(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = rdb.Close()

	mr.Close()
	if _, err := Open(context.Background(), mr.Addr()); err == nil {
		t.Fatal("expected ping failure on a closed server")
	}
}

func TestDeduper(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	d := &Deduper{Redis: rdb, Service: "webhook", TTL: time.Hour}

	if seen, err := d.Seen(ctx, "evt_1"); err != nil || seen {
		t.Fatalf("fresh event seen=%v err=%v", seen, err)
	}
	if err := d.Mark(ctx, "evt_1"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("dedup:webhook:evt_1") {
		t.Fatal("key not written")
	}
	if seen, _ := d.Seen(ctx, "evt_1"); !seen {
		t.Fatal("marked event not seen")
	}

	other := &Deduper{Redis: rdb, Service: "notifier"}
	if seen, _ := other.Seen(ctx, "evt_1"); seen {
		t.Fatal("services share dedup keys")
	}

	mr.FastForward(2 * time.Hour)
	if seen, _ := d.Seen(ctx, "evt_1"); seen {
		t.Fatal("dedup key did not expire")
	}
}

func TestStatusCache(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	c := &StatusCache{Redis: rdb}

	if _, ok, err := c.Get(ctx, "o1"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := orders.Summary{ID: "o1", Status: orders.StatusPending, SubtotalCents: 1000, CreatedAt: created}
	if err := c.Put(ctx, in); err != nil {
		t.Fatal(err)
	}
	out, ok, err := c.Get(ctx, "o1")
	if err != nil || !ok {
		t.Fatalf("hit: ok=%v err=%v", ok, err)
	}
	if out.Status != orders.StatusPending || out.SubtotalCents != 1000 || !out.CreatedAt.Equal(created) {
		t.Fatalf("summary = %+v", out)
	}
	if ttl := mr.TTL("order_status:o1"); ttl != TTLStatusCache {
		t.Fatalf("ttl = %s", ttl)
	}

	if err := c.Forget(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "o1"); ok {
		t.Fatal("forgotten status still cached")
	}

	mr.Set("order_status:o2", "{not json")
	if _, ok, err := c.Get(ctx, "o2"); ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
}
