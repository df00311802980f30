package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/ariefcatur/card-market/internal/catalog"
	"github.com/ariefcatur/card-market/internal/checkout"
	"github.com/ariefcatur/card-market/internal/memstore"
	"github.com/ariefcatur/card-market/internal/obs"
	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/payment"
	"github.com/ariefcatur/card-market/internal/pricing"
	"github.com/ariefcatur/card-market/internal/redisx"
	"github.com/ariefcatur/card-market/internal/settlement"
)

const whsec = "whsec_http"

type stubProvider struct{ err error }

func (p stubProvider) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	if p.err != nil {
		return payment.Session{}, p.err
	}
	return payment.Session{ID: "cs_" + req.OrderID, URL: "https://pay.example/" + req.OrderID}, nil
}

type env struct {
	st  *memstore.Store
	srv *httptest.Server
	mr  *miniredis.Miniredis
}

func newEnv(t *testing.T, provider payment.Provider) *env {
	t.Helper()
	st := memstore.New()
	err := st.UpsertEntries(context.Background(), []catalog.Entry{
		{SKU: "X", Name: "Card X", BasePriceCents: 500, Stock: catalog.CountStock(map[string]int{"NM": 5})},
	})
	if err != nil {
		t.Fatal(err)
	}
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	cache := &redisx.StatusCache{Redis: rdb}
	log := obs.Discard()

	n := 0
	h := &MarketHandler{
		Store: st,
		Checkout: &checkout.Service{
			Store:    st,
			Provider: provider,
			Timeout:  time.Second,
			NewID: func() string {
				n++
				return fmt.Sprintf("ord-%d", n)
			},
			Log: log,
		},
		Settlement: &settlement.Processor{
			Store:    st,
			Verifier: payment.StripeVerifier{Secret: whsec},
			Dedup:    &redisx.Deduper{Redis: rdb, Service: "webhook"},
			Cache:    cache,
			Log:      log,
		},
		Cache: cache,
		Log:   log,
	}
	r := NewRouter()
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &env{st: st, srv: srv, mr: mr}
}

func (e *env) post(t *testing.T, path, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return do(t, req)
}

func (e *env) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func signedCompletion(orderID string) (string, http.Header) {
	payload := []byte(fmt.Sprintf(`{"id":"evt_%s","object":"event","type":"checkout.session.completed",
"data":{"object":{"id":"cs_%s","object":"checkout.session","payment_status":"paid","metadata":{"order_id":%q}}}}`,
		orderID, orderID, orderID))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: whsec, Timestamp: time.Now()})
	h := http.Header{}
	h.Set(payment.SignatureHeader, signed.Header)
	return string(signed.Payload), h
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, stubProvider{})
	resp, err := http.Get(e.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCatalog(t *testing.T) {
	e := newEnv(t, stubProvider{})
	resp, body := e.get(t, "/api/catalog")
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	x := body["catalog"].(map[string]any)["X"].(map[string]any)
	if x["name"] != "Card X" || x["base_price_cents"] != float64(500) {
		t.Fatalf("entry = %v", x)
	}
}

func TestCheckoutThenWebhookEndToEnd(t *testing.T) {
	e := newEnv(t, stubProvider{})

	resp, body := e.post(t, "/api/create-checkout-session",
		`{"cart":[{"sku":"X","qty":2,"condition":"Near Mint","price":1}],"customerEmail":"buyer@example.com"}`, nil)
	if resp.StatusCode != http.StatusOK || body["ok"] != true || body["url"] != "https://pay.example/ord-1" {
		t.Fatalf("checkout status = %d body = %v", resp.StatusCode, body)
	}

	resp, body = e.get(t, "/api/orders/ord-1")
	order := body["order"].(map[string]any)
	if resp.StatusCode != http.StatusOK || order["status"] != "pending" || order["subtotal_cents"] != float64(1000) {
		t.Fatalf("order status = %d body = %v", resp.StatusCode, body)
	}
	if _, leaked := order["customerEmail"]; leaked {
		t.Fatal("order view leaks the customer email")
	}
	if !e.mr.Exists("order_status:ord-1") {
		t.Fatal("status not cached")
	}

	payload, hdr := signedCompletion("ord-1")
	for i := 0; i < 2; i++ {
		resp, body = e.post(t, "/stripe/webhook", payload, hdr)
		if resp.StatusCode != http.StatusOK || body["received"] != true {
			t.Fatalf("webhook #%d status = %d body = %v", i, resp.StatusCode, body)
		}
	}
	if body["outcome"] != string(settlement.OutcomeDuplicate) {
		t.Fatalf("replay outcome = %v", body["outcome"])
	}

	entries, _ := e.st.GetEntries(context.Background(), []string{"X"})
	if got := entries["X"].Available(pricing.NearMint); got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}

	// Settlement dropped the cached pending status.
	_, body = e.get(t, "/api/orders/ord-1")
	if got := body["order"].(map[string]any)["status"]; got != "paid" {
		t.Fatalf("status after settlement = %v", got)
	}
}

func TestCheckoutErrors(t *testing.T) {
	cases := map[string]struct {
		provider payment.Provider
		body     string
		code     int
	}{
		"bad json":     {stubProvider{}, `{"cart":`, http.StatusBadRequest},
		"empty cart":   {stubProvider{}, `{"cart":[]}`, http.StatusBadRequest},
		"unknown sku":  {stubProvider{}, `{"cart":[{"sku":"nope","qty":1}]}`, http.StatusBadRequest},
		"insufficient": {stubProvider{}, `{"cart":[{"sku":"X","qty":6}]}`, http.StatusBadRequest},
		"bad email":    {stubProvider{}, `{"cart":[{"sku":"X"}],"customerEmail":"@@"}`, http.StatusBadRequest},
		"provider":     {stubProvider{err: errors.New("stripe down")}, `{"cart":[{"sku":"X"}]}`, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, tc.provider)
			resp, body := e.post(t, "/api/create-checkout-session", tc.body, nil)
			if resp.StatusCode != tc.code || body["ok"] != false || body["error"] == nil {
				t.Fatalf("status = %d body = %v", resp.StatusCode, body)
			}
		})
	}
}

func TestWebhookErrors(t *testing.T) {
	e := newEnv(t, stubProvider{})

	payload, hdr := signedCompletion("ord-missing")
	resp, _ := e.post(t, "/stripe/webhook", payload, hdr)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unknown order status = %d, want 500", resp.StatusCode)
	}

	forged := http.Header{}
	forged.Set(payment.SignatureHeader, "t=1,v1=00")
	resp, _ = e.post(t, "/stripe/webhook", payload, forged)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("forged status = %d, want 400", resp.StatusCode)
	}

	big := bytes.Repeat([]byte("a"), maxWebhookBody+1)
	resp, _ = e.post(t, "/stripe/webhook", string(big), hdr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized status = %d, want 400", resp.StatusCode)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	e := newEnv(t, stubProvider{})
	resp, body := e.get(t, "/api/orders/nope")
	if resp.StatusCode != http.StatusNotFound || body["ok"] != false {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
}

func TestGetOrderServedFromCache(t *testing.T) {
	e := newEnv(t, stubProvider{})
	rdb := redisx.New(e.mr.Addr())
	defer rdb.Close()
	cache := &redisx.StatusCache{Redis: rdb}
	s := orders.Summary{ID: "cached", Status: orders.StatusPaid, SubtotalCents: 42}
	if err := cache.Put(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	resp, body := e.get(t, "/api/orders/cached")
	if resp.StatusCode != http.StatusOK || body["order"].(map[string]any)["subtotal_cents"] != float64(42) {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
}
