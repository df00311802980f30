// Package notify carries paid orders to the customer and the operator: the
// API side publishes them, cmd/notifier delivers them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/card-market/internal/kafka"
	"github.com/ariefcatur/card-market/internal/orders"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaDispatcher publishes an OrderPaid envelope to the order.paid topic.
type KafkaDispatcher struct {
	Producer publisher
	Service  string
	Now      func() time.Time
}

func (d *KafkaDispatcher) OrderPaid(ctx context.Context, o orders.Order) error {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      d.Service,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.NewOrderPaidPayload(o)),
	}
	err := d.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkax.EventHeaders(orders.EventOrderPaid, env.EventVersion)...)
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", orders.EventOrderPaid, o.ID, err)
	}
	return nil
}

// LogDispatcher stands in when no broker is configured.
type LogDispatcher struct {
	Log *slog.Logger
}

func (d LogDispatcher) OrderPaid(ctx context.Context, o orders.Order) error {
	d.Log.Info("order paid notification",
		"order_id", o.ID, "subtotal_cents", o.SubtotalCents, "customer_email", o.CustomerEmail)
	return nil
}
