package main

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/gateway"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

type order struct {
	Code        int64
	Amount      domain.Amount
	Description string
	LinkID      string
}

// mockGateway accepts signed payment requests and, on demand, calls the
// API back with a signed webhook. It plays both the hosted page and the
// gateway's notification sender.
type mockGateway struct {
	cfg    config
	client *http.Client

	mu     sync.Mutex
	orders map[int64]*order
}

func newGateway(cfg config, client *http.Client) *mockGateway {
	return &mockGateway{cfg: cfg, client: client, orders: make(map[int64]*order)}
}

func (g *mockGateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v2/payment-requests", g.createPayment)
	r.Get("/checkout/{orderCode}", g.checkoutPage)
	r.Post("/checkout/{orderCode}/pay", g.pay)
	r.Post("/checkout/{orderCode}/cancel", g.cancel)
	return r
}

type paymentRequest struct {
	OrderCode   int64       `json:"orderCode"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	CancelURL   string      `json:"cancelUrl"`
	ReturnURL   string      `json:"returnUrl"`
	Signature   string      `json:"signature"`
}

func (g *mockGateway) createPayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if !constantEq(r.Header.Get("x-client-id"), g.cfg.ClientID) || !constantEq(r.Header.Get("x-api-key"), g.cfg.APIKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "401", "desc": "invalid credentials"})
		return
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.UseNumber()
	var req paymentRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"code": "20", "desc": "malformed request"})
		return
	}

	amount, err := domain.ParseAmount(req.Amount.String())
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusOK, map[string]any{"code": "20", "desc": "invalid amount"})
		return
	}

	want := gateway.Sign(g.cfg.ChecksumKey, map[string]string{
		"amount":      amount.String(),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   req.ReturnURL,
	})
	if !constantEq(want, req.Signature) {
		writeJSON(w, http.StatusOK, map[string]any{"code": "201", "desc": "signature mismatch"})
		return
	}

	g.mu.Lock()
	if _, exists := g.orders[req.OrderCode]; exists {
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"code": "231", "desc": "order code already exists"})
		return
	}
	o := &order{Code: req.OrderCode, Amount: amount, Description: req.Description, LinkID: uuid.NewString()}
	g.orders[o.Code] = o
	g.mu.Unlock()

	log.Info("payment link created", "order_code", o.Code, "amount", o.Amount.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"code": "00",
		"desc": "success",
		"data": map[string]any{
			"checkoutUrl":   fmt.Sprintf("%s/checkout/%d", g.cfg.PublicURL, o.Code),
			"paymentLinkId": o.LinkID,
		},
	})
}

func (g *mockGateway) lookup(r *http.Request) (*order, bool) {
	code, err := strconv.ParseInt(chi.URLParam(r, "orderCode"), 10, 64)
	if err != nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[code]
	return o, ok
}

func (g *mockGateway) checkoutPage(w http.ResponseWriter, r *http.Request) {
	o, ok := g.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<h1>Order %d</h1><p>%s: %s VND</p>
<form method="post" action="/checkout/%d/pay"><button>Pay</button></form>
<form method="post" action="/checkout/%d/cancel"><button>Cancel</button></form>
</body></html>`, o.Code, o.Description, o.Amount, o.Code, o.Code)
}

func (g *mockGateway) pay(w http.ResponseWriter, r *http.Request) {
	g.notify(w, r, true)
}

func (g *mockGateway) cancel(w http.ResponseWriter, r *http.Request) {
	g.notify(w, r, false)
}

// notify sends the webhook. Calling pay twice delivers the same
// notification twice, which is how duplicate delivery is exercised locally.
func (g *mockGateway) notify(w http.ResponseWriter, r *http.Request, paid bool) {
	log := logging.FromContext(r.Context())

	o, ok := g.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, err := gateway.BuildWebhook(g.cfg.ChecksumKey, o.Code, o.Amount, paid, o.LinkID)
	if err != nil {
		log.Error("failed to build webhook", "error", err, "order_code", o.Code)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, g.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		log.Error("webhook delivery failed", "error", err, "order_code", o.Code)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Info("webhook delivered", "order_code", o.Code, "paid", paid, "status", resp.StatusCode)
	writeJSON(w, http.StatusOK, map[string]any{
		"order_code":     o.Code,
		"paid":           paid,
		"webhook_status": resp.StatusCode,
	})
}

func constantEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
