// Package settlement applies authenticated payment confirmations to the order
// ledger and the catalog, exactly once per order.
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/payment"
	"github.com/ariefcatur/card-market/internal/store"
)

type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
)

// Dispatcher hands a freshly paid order to the notification pipeline.
type Dispatcher interface {
	OrderPaid(ctx context.Context, o orders.Order) error
}

// Deduper remembers provider event ids that were fully processed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type StatusCache interface {
	Forget(ctx context.Context, orderID string) error
}

// Processor settles orders. Dispatcher, Dedup and Cache are optional.
type Processor struct {
	Store      store.Store
	Verifier   payment.Verifier
	Dispatcher Dispatcher
	Dedup      Deduper
	Cache      StatusCache
	Now        func() time.Time
	Log        *slog.Logger
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// HandleWebhook authenticates a raw provider delivery and settles the order
// it confirms. Any returned error except payment.ErrAuthenticity should be
// answered so that the provider redelivers.
func (p *Processor) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := p.Verifier.Verify(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrAuthenticity) {
			p.log().Warn("webhook rejected", "err", err)
		} else {
			p.log().Error("webhook unreadable", "err", err)
		}
		return "", err
	}
	log := p.log().With("event_id", ev.ID, "event_type", ev.Type)
	if !ev.Paid {
		log.Info("webhook ignored")
		return OutcomeIgnored, nil
	}

	if p.Dedup != nil && ev.ID != "" {
		seen, err := p.Dedup.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn("dedup lookup failed", "err", err)
		} else if seen {
			log.Info("webhook replay skipped")
			return OutcomeDuplicate, nil
		}
	}

	out, err := p.Settle(ctx, ev)
	if err != nil {
		return out, err
	}
	if p.Dedup != nil && ev.ID != "" {
		if err := p.Dedup.Mark(ctx, ev.ID); err != nil {
			log.Warn("dedup mark failed", "err", err)
		}
	}
	return out, nil
}

// Settle moves the order named by ev from pending to paid and removes its
// items from stock in one transaction. A paid order is left untouched.
func (p *Processor) Settle(ctx context.Context, ev payment.Event) (Outcome, error) {
	log := p.log().With("event_id", ev.ID, "order_id", ev.OrderID)
	if ev.OrderID == "" {
		err := &OrderNotFoundError{EventID: ev.ID}
		log.Error("payment event without order", "err", err, obs.Alert())
		return "", err
	}

	var paid orders.Order
	settled := false
	err := p.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		if o.Status == orders.StatusPaid {
			return nil
		}
		next, changed, err := o.Apply(orders.Paid{
			At:            p.now(),
			CustomerEmail: ev.CustomerEmail,
			SessionID:     ev.SessionID,
		})
		if err != nil || !changed {
			return err
		}
		if o.PaymentSessionID != "" && ev.SessionID != "" && o.PaymentSessionID != ev.SessionID {
			log.Warn("payment session differs from the recorded one",
				"recorded", o.PaymentSessionID, "session_id", ev.SessionID)
		}

		entries, err := tx.LockEntries(ctx, o.SKUs())
		if err != nil {
			return err
		}
		updated, err := catalog.Deduct(entries, o.Demands())
		if err != nil {
			return err
		}
		for _, sku := range o.SKUs() {
			if err := tx.PutEntry(ctx, updated[sku]); err != nil {
				return err
			}
		}
		if err := tx.PutOrder(ctx, next); err != nil {
			return err
		}
		paid, settled = next, true
		return nil
	})

	var (
		ise     *catalog.InsufficientStockError
		unknown *catalog.UnknownSKUError
	)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrNotFound):
		nf := &OrderNotFoundError{OrderID: ev.OrderID, EventID: ev.ID}
		log.Error("paid order not found", "err", nf, obs.Alert())
		return "", nf
	case errors.As(err, &ise):
		log.Error("oversold: paid order exceeds stock, left pending",
			"sku", ise.SKU, "condition", ise.Condition,
			"requested", ise.Requested, "available", ise.Available, obs.Alert())
		return "", err
	case errors.As(err, &unknown):
		log.Error("paid order references a removed sku", "sku", unknown.SKU, obs.Alert())
		return "", err
	case errors.Is(err, orders.ErrClosed):
		log.Error("payment for a closed order", "err", err, obs.Alert())
		return "", err
	default:
		log.Error("settlement failed", "err", err)
		return "", err
	}

	if !settled {
		log.Info("order already paid")
		return OutcomeAlreadyPaid, nil
	}
	log.Info("order settled", "subtotal_cents", paid.SubtotalCents, "items", len(paid.Items))

	if p.Cache != nil {
		if err := p.Cache.Forget(ctx, paid.ID); err != nil {
			log.Warn("drop cached status", "err", err)
		}
	}
	if p.Dispatcher != nil {
		if err := p.Dispatcher.OrderPaid(ctx, paid); err != nil {
			log.Error("dispatch order paid notification", "err", err)
		}
	}
	return OutcomeSettled, nil
}
