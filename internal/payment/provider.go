// Package payment is the boundary to the payment provider: opening hosted
// checkout sessions and authenticating the webhook events that confirm them.
package payment

import (
	"context"
	"errors"

	"github.com/ariefcatur/card-market/internal/pricing"
)

var (
	// ErrAuthenticity is a permanent rejection: the event was not signed by the provider.
	ErrAuthenticity = errors.New("webhook authenticity check failed")
	ErrProvider     = errors.New("payment provider request failed")
)

// MetadataOrderID is the session metadata key carrying our order id.
const MetadataOrderID = "order_id"

type LineItem struct {
	SKU       string
	Name      string
	Condition pricing.Condition
	UnitCents int64
	Qty       int
}

type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Lines         []LineItem
}

type Session struct {
	ID  string
	URL string
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// Event is an authenticated provider event reduced to what settlement needs.
type Event struct {
	ID   string
	Type string
	// Paid is true when the event confirms the session's payment succeeded.
	Paid          bool
	OrderID       string
	SessionID     string
	CustomerEmail string
}

type Verifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}
