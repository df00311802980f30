// Package housekeeping expires pending orders that were never paid.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/ariefcatur/card-market/internal/store"
)

type StatusCache interface {
	Forget(ctx context.Context, orderID string) error
}

// Sweeper fails pending orders older than TTL. Provider sessions expire
// before TTL, so a swept order can no longer be paid.
type Sweeper struct {
	Store    store.Store
	TTL      time.Duration
	Interval time.Duration
	Cache    StatusCache // optional
	Now      func() time.Time
	Log      *slog.Logger
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// RunOnce expires every pending order created more than olderThan ago.
func (s *Sweeper) RunOnce(ctx context.Context, olderThan time.Duration) ([]string, error) {
	now := s.now().UTC()
	ids, err := s.Store.ExpirePending(ctx, now.Add(-olderThan), now)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if s.Cache != nil {
			if err := s.Cache.Forget(ctx, id); err != nil {
				s.log().Warn("drop cached status", "order_id", id, "err", err)
			}
		}
	}
	if len(ids) > 0 {
		s.log().Info("expired pending orders", "count", len(ids), "order_ids", ids)
	}
	return ids, nil
}

// Run sweeps every Interval until ctx ends. A zero Interval disables it.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return nil
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.RunOnce(ctx, s.TTL); err != nil && ctx.Err() == nil {
				s.log().Error("sweep pending orders", "err", err)
			}
		}
	}
}
