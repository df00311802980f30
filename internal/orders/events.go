package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid = "OrderPaid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidPayload struct {
	OrderID       string    `json:"order_id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	SubtotalCents int64     `json:"subtotal_cents"`
	Items         []Item    `json:"items"`
	PaidAt        time.Time `json:"paid_at"`
}

func NewOrderPaidPayload(o Order) OrderPaidPayload {
	p := OrderPaidPayload{
		OrderID:       o.ID,
		CustomerEmail: o.CustomerEmail,
		SubtotalCents: o.SubtotalCents,
		Items:         o.Items,
	}
	if o.PaidAt != nil {
		p.PaidAt = *o.PaidAt
	}
	return p
}
