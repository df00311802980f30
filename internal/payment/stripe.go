package payment

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	SessionTTL time.Duration
	// APIURL overrides the Stripe API base, for tests.
	APIURL string
}

// Stripe opens Stripe Checkout sessions priced from our own line items.
type Stripe struct {
	cfg    StripeConfig
	client session.Client
	now    func() time.Time
}

func NewStripe(cfg StripeConfig) *Stripe {
	bc := &stripe.BackendConfig{
		HTTPClient: &http.Client{},
		// The caller's context bounds the call; a retry would outlive it.
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		bc.URL = stripe.String(cfg.APIURL)
	}
	return &Stripe{
		cfg:    cfg,
		client: session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, bc), Key: cfg.SecretKey},
		now:    time.Now,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				UnitAmount: stripe.Int64(l.UnitCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("%s (%s)", l.Name, l.Condition)),
					Metadata: map[string]string{
						"sku":       l.SKU,
						"condition": string(l.Condition),
					},
				},
			},
			Quantity: stripe.Int64(int64(l.Qty)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataOrderID: req.OrderID},
		},
	}
	if s.cfg.SessionTTL > 0 {
		params.ExpiresAt = stripe.Int64(s.now().Add(s.cfg.SessionTTL).Unix())
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetadataOrderID, req.OrderID)
	params.AddMetadata("line_count", strconv.Itoa(len(req.Lines)))
	// A retried create for the same order must not open a second session.
	params.SetIdempotencyKey("checkout-" + req.OrderID)
	params.Context = ctx

	sess, err := s.client.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
