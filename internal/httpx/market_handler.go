package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/checkout"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/payment"
	"github.com/ariefcatur/card-market/internal/settlement"
	"github.com/ariefcatur/card-market/internal/store"
)

const (
	maxCartBody    = 1 << 20
	maxWebhookBody = 64 << 10
)

type StatusCache interface {
	Get(ctx context.Context, orderID string) (orders.Summary, bool, error)
	Put(ctx context.Context, s orders.Summary) error
}

type MarketHandler struct {
	Store      store.Store
	Checkout   *checkout.Service
	Settlement *settlement.Processor
	Cache      StatusCache // optional
	Log        *slog.Logger
}

func (h *MarketHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/api/catalog", h.listCatalog)
		r.Post("/api/create-checkout-session", h.createCheckoutSession)
		r.Get("/api/orders/{id}", h.getOrder)
	})
	// No timeout here: settlement runs to completion once the body is read.
	r.Post("/stripe/webhook", h.stripeWebhook)
}

type catalogResp struct {
	OK      bool                     `json:"ok"`
	Catalog map[string]catalog.Entry `json:"catalog"`
}

func (h *MarketHandler) listCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListCatalog(r.Context())
	if err != nil {
		h.Log.Error("list catalog", "err", err)
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, catalogResp{OK: true, Catalog: entries})
}

type checkoutResp struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

func (h *MarketHandler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCartBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Checkout.CreateSession(r.Context(), req)
	var ise *catalog.InsufficientStockError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, checkoutResp{OK: true, URL: res.URL})
	case errors.Is(err, checkout.ErrValidation), errors.As(err, &ise):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrPaymentUnavailable):
		writeError(w, http.StatusInternalServerError, "payment provider unavailable, please retry")
	default:
		h.Log.Error("create checkout session", "err", err)
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

type webhookResp struct {
	Received bool               `json:"received"`
	Outcome  settlement.Outcome `json:"outcome,omitempty"`
}

func (h *MarketHandler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	out, err := h.Settlement.HandleWebhook(context.WithoutCancel(r.Context()), body, r.Header.Get(payment.SignatureHeader))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, webhookResp{Received: true, Outcome: out})
	case errors.Is(err, payment.ErrAuthenticity):
		writeError(w, http.StatusBadRequest, "invalid signature")
	default:
		// Any other failure is answered 500 so the provider redelivers.
		writeError(w, http.StatusInternalServerError, "settlement failed")
	}
}

type orderResp struct {
	OK    bool           `json:"ok"`
	Order orders.Summary `json:"order"`
}

func (h *MarketHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.Cache != nil {
		if s, ok, err := h.Cache.Get(ctx, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, orderResp{OK: true, Order: s})
			return
		}
	}

	o, err := h.Store.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Log.Error("get order", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "order unavailable")
		return
	}
	s := o.Summary()
	if h.Cache != nil {
		if err := h.Cache.Put(ctx, s); err != nil {
			h.Log.Warn("cache order status", "order_id", orderID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, orderResp{OK: true, Order: s})
}
