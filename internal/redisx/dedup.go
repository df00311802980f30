package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper records processed event ids per consuming service.
type Deduper struct {
	Redis   *redis.Client
	Service string
	TTL     time.Duration
}

func (d *Deduper) key(eventID string) string {
	return fmt.Sprintf(KeyDedup, d.Service, eventID)
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Redis, d.key(eventID))
}

// Mark is called only after the event was fully processed.
func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return d.Redis.Set(ctx, d.key(eventID), "1", ttl).Err()
}
