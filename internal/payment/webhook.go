package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader carries the provider signature of the raw body.
const SignatureHeader = "Stripe-Signature"

// StripeVerifier checks the Stripe-Signature header against the endpoint
// secret and extracts checkout-session payment confirmations.
type StripeVerifier struct {
	Secret string
	// Tolerance bounds the signature timestamp age; zero uses Stripe's default.
	Tolerance time.Duration
}

func (v StripeVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.Secret, webhook.ConstructEventOptions{
		Tolerance:                v.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrAuthenticity, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return out, nil
	}
	if ev.Data == nil {
		return out, fmt.Errorf("event %s has no data", ev.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return out, fmt.Errorf("decode checkout session of event %s: %w", ev.ID, err)
	}
	out.SessionID = sess.ID
	out.OrderID = strings.TrimSpace(sess.Metadata[MetadataOrderID])
	if out.OrderID == "" {
		out.OrderID = strings.TrimSpace(sess.ClientReferenceID)
	}
	out.CustomerEmail = sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	// Delayed payment methods complete the session unpaid and follow up with
	// async_payment_succeeded.
	out.Paid = ev.Type == stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded ||
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	return out, nil
}
