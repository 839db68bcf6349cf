package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

const (
	createPaymentPath = "/v2/payment-requests"
	codeOK            = "00"
)

type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	Timeout     time.Duration
}

// Client talks to the hosted payment gateway. It creates checkout pages
// and authenticates the gateway's webhook callbacks.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	httpClient  *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type CheckoutRequest struct {
	OrderCode   int64
	Amount      domain.Amount
	Description string
	CancelURL   string
	ReturnURL   string
}

// The amount is written as a bare JSON number from its digit string so
// it is never squeezed through float64.
type createPaymentPayload struct {
	OrderCode   int64       `json:"orderCode"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	CancelURL   string      `json:"cancelUrl"`
	ReturnURL   string      `json:"returnUrl"`
	Signature   string      `json:"signature"`
}

type createPaymentResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *struct {
		CheckoutURL   string `json:"checkoutUrl"`
		PaymentLinkID string `json:"paymentLinkId"`
	} `json:"data"`
}

// CreateHostedPayment registers an order with the gateway and returns the
// checkout URL the payer should be redirected to. Failures wrap
// domain.ErrGatewayUnavailable. The call is never retried here.
func (c *Client) CreateHostedPayment(ctx context.Context, req CheckoutRequest) (string, error) {
	log := logging.FromContext(ctx)

	payload := createPaymentPayload{
		OrderCode:   req.OrderCode,
		Amount:      json.Number(req.Amount.String()),
		Description: req.Description,
		CancelURL:   req.CancelURL,
		ReturnURL:   req.ReturnURL,
	}
	payload.Signature = Sign(c.checksumKey, map[string]string{
		"amount":      req.Amount.String(),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   req.ReturnURL,
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("CreateHostedPayment: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPaymentPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("CreateHostedPayment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	log.Info("gateway request sent", "order_code", req.OrderCode)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("CreateHostedPayment: send: %w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	log.Info("gateway response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("CreateHostedPayment: read body: %w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("CreateHostedPayment: unexpected status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}

	var out createPaymentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("CreateHostedPayment: decode: %w: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.Code != codeOK || out.Data == nil || out.Data.CheckoutURL == "" {
		return "", fmt.Errorf("CreateHostedPayment: rejected code=%s desc=%q: %w", out.Code, out.Desc, domain.ErrGatewayUnavailable)
	}
	return out.Data.CheckoutURL, nil
}

// Notification is a verified webhook callback.
type Notification struct {
	OrderCode int64
	// Amount is the gross amount the payer was charged, fee included.
	Amount    domain.Amount
	Paid      bool
	Reference string
}

type webhookPayload struct {
	Code      string         `json:"code"`
	Desc      string         `json:"desc"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature"`
}

// VerifyWebhook authenticates a raw callback body and extracts the order
// it refers to. Any malformed or unsigned payload is reported as
// domain.ErrInvalidSignature.
func (c *Client) VerifyWebhook(raw []byte) (*Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p webhookPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("VerifyWebhook: decode: %w", domain.ErrInvalidSignature)
	}
	if p.Data == nil || p.Signature == "" {
		return nil, fmt.Errorf("VerifyWebhook: missing data or signature: %w", domain.ErrInvalidSignature)
	}
	if !verify(c.checksumKey, p.Data, p.Signature) {
		return nil, fmt.Errorf("VerifyWebhook: %w", domain.ErrInvalidSignature)
	}

	orderNum, ok := p.Data["orderCode"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("VerifyWebhook: orderCode missing: %w", domain.ErrInvalidSignature)
	}
	orderCode, err := orderNum.Int64()
	if err != nil {
		return nil, fmt.Errorf("VerifyWebhook: orderCode %q: %w", orderNum, domain.ErrInvalidSignature)
	}

	amountNum, ok := p.Data["amount"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("VerifyWebhook: amount missing: %w", domain.ErrInvalidSignature)
	}
	amount, err := domain.ParseAmount(amountNum.String())
	if err != nil {
		return nil, fmt.Errorf("VerifyWebhook: amount %q: %w", amountNum, domain.ErrInvalidSignature)
	}

	ref, _ := p.Data["reference"].(string)
	return &Notification{
		OrderCode: orderCode,
		Amount:    amount,
		Paid:      p.Success && p.Code == codeOK,
		Reference: ref,
	}, nil
}

// BuildWebhook produces a signed callback body in the gateway's format.
// The mock gateway and tests use it to impersonate the real gateway.
func BuildWebhook(checksumKey string, orderCode int64, amount domain.Amount, paid bool, reference string) ([]byte, error) {
	code, desc := codeOK, "success"
	if !paid {
		code, desc = "01", "payment failed"
	}
	data := map[string]any{
		"orderCode":           json.Number(strconv.FormatInt(orderCode, 10)),
		"amount":              json.Number(amount.String()),
		"description":         fmt.Sprintf("Deposit %d", orderCode),
		"reference":           reference,
		"code":                code,
		"desc":                desc,
		"currency":            "VND",
		"transactionDateTime": time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	sig, err := SignData(checksumKey, data)
	if err != nil {
		return nil, fmt.Errorf("BuildWebhook: %w", err)
	}
	return json.Marshal(webhookPayload{
		Code:      code,
		Desc:      desc,
		Success:   paid,
		Data:      data,
		Signature: sig,
	})
}
