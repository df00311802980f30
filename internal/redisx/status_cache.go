package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/card-market/internal/orders"
)

type StatusCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func statusKey(orderID string) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

// Get returns ok=false on a miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (orders.Summary, bool, error) {
	b, err := c.Redis.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.Summary{}, false, nil
	}
	if err != nil {
		return orders.Summary{}, false, err
	}
	var s orders.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		// A stale layout behaves like a miss.
		return orders.Summary{}, false, nil
	}
	return s, true, nil
}

func (c *StatusCache) Put(ctx context.Context, s orders.Summary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return c.Redis.Set(ctx, statusKey(s.ID), b, ttl).Err()
}

// Forget drops the cached status after a transition.
func (c *StatusCache) Forget(ctx context.Context, orderID string) error {
	return c.Redis.Del(ctx, statusKey(orderID)).Err()
}
