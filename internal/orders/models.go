package orders

import (
	"time"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/pricing"
)

// Item is one validated cart line, frozen at session creation.
type Item struct {
	SKU       string            `json:"sku"`
	Qty       int               `json:"qty"`
	Condition pricing.Condition `json:"condition"`
}

type Order struct {
	ID               string     `json:"id"`
	Status           Status     `json:"status"`
	Items            []Item     `json:"items"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	CustomerEmail    string     `json:"customerEmail,omitempty"`
	PaymentSessionID string     `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
}

// Demands converts the order items into stock demands.
func (o Order) Demands() []catalog.Demand {
	out := make([]catalog.Demand, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, catalog.Demand{SKU: it.SKU, Condition: it.Condition, Qty: it.Qty})
	}
	return out
}

// SKUs returns the distinct SKUs of the order in item order.
func (o Order) SKUs() []string {
	seen := make(map[string]bool, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.SKU] {
			seen[it.SKU] = true
			out = append(out, it.SKU)
		}
	}
	return out
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (o Order) Clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.FailedAt != nil {
		t := *o.FailedAt
		o.FailedAt = &t
	}
	return o
}

// Summary is the public view of an order: no items, no customer data.
type Summary struct {
	ID            string     `json:"id"`
	Status        Status     `json:"status"`
	SubtotalCents int64      `json:"subtotal_cents"`
	CreatedAt     time.Time  `json:"createdAt"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	FailedAt      *time.Time `json:"failedAt,omitempty"`
}

func (o Order) Summary() Summary {
	c := o.Clone()
	return Summary{
		ID:            c.ID,
		Status:        c.Status,
		SubtotalCents: c.SubtotalCents,
		CreatedAt:     c.CreatedAt,
		PaidAt:        c.PaidAt,
		FailedAt:      c.FailedAt,
	}
}
