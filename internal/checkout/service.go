// Package checkout turns a client cart into a priced pending order and a
// hosted payment session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/payment"
	"github.com/ariefcatur/card-market/internal/store"
)

type Request struct {
	Cart          []CartLine `json:"cart"`
	CustomerEmail string     `json:"customerEmail"`
}

type Result struct {
	OrderID   string
	SessionID string
	URL       string
}

type Service struct {
	Store    store.Store
	Provider payment.Provider
	// Timeout bounds the provider call; zero means no bound beyond ctx.
	Timeout time.Duration
	Now     func() time.Time
	NewID   func() string
	Log     *slog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// CreateSession validates and prices the cart, records a pending order and
// opens a provider session for it. Nothing is persisted when validation or
// the stock check fails. When the provider fails the pending order stays
// behind and is later expired by housekeeping.
func (s *Service) CreateSession(ctx context.Context, req Request) (Result, error) {
	items := Normalize(req.Cart)
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyCart)
	}

	email, err := normalizeEmail(req.CustomerEmail)
	if err != nil {
		return Result{}, err
	}

	o := orders.Order{
		ID:            s.newID(),
		Status:        orders.StatusPending,
		Items:         items,
		CustomerEmail: email,
		CreatedAt:     s.now().UTC(),
	}
	entries, err := s.Store.GetEntries(ctx, o.SKUs())
	if err != nil {
		return Result{}, fmt.Errorf("load catalog: %w", err)
	}
	if _, err := catalog.Deduct(entries, o.Demands()); err != nil {
		var unknown *catalog.UnknownSKUError
		if errors.As(err, &unknown) {
			return Result{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return Result{}, err
	}

	lines := make([]payment.LineItem, 0, len(items))
	for _, it := range items {
		e := entries[it.SKU]
		unit := e.UnitPriceCents(it.Condition)
		o.SubtotalCents += unit * int64(it.Qty)
		lines = append(lines, payment.LineItem{
			SKU:       it.SKU,
			Name:      e.Name,
			Condition: it.Condition,
			UnitCents: unit,
			Qty:       it.Qty,
		})
	}

	if err := s.Store.InsertOrder(ctx, o); err != nil {
		return Result{}, fmt.Errorf("insert order: %w", err)
	}
	log := s.log().With("order_id", o.ID)

	pctx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	sess, err := s.Provider.CreateSession(pctx, payment.SessionRequest{
		OrderID:       o.ID,
		CustomerEmail: email,
		Lines:         lines,
	})
	if err != nil {
		log.Warn("payment session failed, order left pending", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrPaymentUnavailable, err)
	}

	if err := s.Store.AttachSession(ctx, o.ID, sess.ID); err != nil {
		log.Warn("record payment session", "session_id", sess.ID, "err", err)
	}
	log.Info("checkout session created",
		"session_id", sess.ID, "subtotal_cents", o.SubtotalCents, "items", len(items))
	return Result{OrderID: o.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrBadEmail, raw)
	}
	return addr.Address, nil
}
