package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/card-market/internal/kafka"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
)

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Notifier consumes order.paid and sends the receipt and the operator alert.
type Notifier struct {
	Sender        Sender
	OperatorEmail string
	Dedup         Deduper // optional
	MaxTries      uint
	// NewBackOff builds the retry schedule of one send; nil is exponential.
	NewBackOff func() backoff.BackOff
	Log        *slog.Logger
}

func (n *Notifier) backOff() backoff.BackOff {
	if n.NewBackOff != nil {
		return n.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	return b
}

// Handle is a kafka.Handler. It returns an error only when a message could
// not be delivered after every retry, leaving its offset uncommitted.
func (n *Notifier) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		n.Log.Error("drop undecodable message", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}
	log := n.Log.With("event_id", env.EventID, "order_id", env.CorrelationID)

	if n.Dedup != nil {
		if seen, err := n.Dedup.Seen(ctx, env.EventID); err == nil && seen {
			log.Info("notification already sent")
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		log.Error("drop message with bad payload", "err", err)
		return nil
	}

	for _, msg := range n.messages(p) {
		if err := n.send(ctx, msg); err != nil {
			log.Error("notification gave up", "kind", msg.Kind, "err", err, obs.Alert())
			return err
		}
	}

	if n.Dedup != nil {
		if err := n.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup mark failed", "err", err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	tries := n.MaxTries
	if tries == 0 {
		tries = 5
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, n.Sender.Send(ctx, msg)
	},
		backoff.WithBackOff(n.backOff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			n.Log.Warn("notification retry", "order_id", msg.OrderID, "kind", msg.Kind, "wait", wait, "err", err)
		}),
	)
	return err
}

// messages builds the customer receipt (when an email is known) and the
// operator alert for one paid order.
func (n *Notifier) messages(p orders.OrderPaidPayload) []Message {
	var lines strings.Builder
	for _, it := range p.Items {
		fmt.Fprintf(&lines, "%d x %s (%s)\n", it.Qty, it.SKU, it.Condition)
	}
	total := decimal.New(p.SubtotalCents, -2).StringFixed(2)

	var out []Message
	if p.CustomerEmail != "" {
		out = append(out, Message{
			Kind:    KindReceipt,
			OrderID: p.OrderID,
			To:      p.CustomerEmail,
			Subject: "Your order " + p.OrderID + " is confirmed",
			Body:    fmt.Sprintf("Thanks for your order.\n\n%s\nTotal: %s\n", lines.String(), total),
		})
	}
	out = append(out, Message{
		Kind:    KindAlert,
		OrderID: p.OrderID,
		To:      n.OperatorEmail,
		Subject: "Order " + p.OrderID + " paid, " + total,
		Body: fmt.Sprintf("Paid at %s by %s\n\n%s", p.PaidAt.UTC().Format(time.RFC3339),
			orDash(p.CustomerEmail), lines.String()),
	})
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
