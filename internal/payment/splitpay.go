package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/resilience"
	"github.com/noah-isme/backend-pay/internal/store"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Splitpay-Signature"

const maxProviderResponse = 1 << 20

// ProviderError is a rejection returned by the SplitPay API.
type ProviderError struct {
	StatusCode int
	ReasonCode string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("splitpay: %d %s %s", e.StatusCode, e.ReasonCode, e.Message)
}

// SplitPay talks to the SplitPay REST API.
type SplitPay struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	HTTP          resilience.HTTPClient
}

// CreateOrder opens a hosted checkout order for the given cart.
func (s SplitPay) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return CreateOrderResponse{}, errors.New("splitpay: order id is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("splitpay: encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/api/v1/orders"), bytes.NewReader(body))
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("splitpay: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+strings.TrimSpace(s.APIKey))

	resp, err := s.HTTP.Do(ctx, httpReq)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("splitpay: create order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("splitpay: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return CreateOrderResponse{}, decodeProviderError(resp.StatusCode, payload)
	}
	var out CreateOrderResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return CreateOrderResponse{}, fmt.Errorf("splitpay: decode response: %w", err)
	}
	if out.PaymentURL == "" {
		return CreateOrderResponse{}, errors.New("splitpay: response missing payment url")
	}
	return out, nil
}

func (s SplitPay) endpoint(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

func decodeProviderError(status int, payload []byte) error {
	perr := &ProviderError{StatusCode: status}
	var body struct {
		ReasonCode string `json:"reasonCode"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		perr.ReasonCode = body.ReasonCode
		perr.Message = body.Message
	}
	if perr.Message == "" {
		perr.Message = strings.TrimSpace(string(payload))
	}
	return perr
}

type splitPayWebhook struct {
	Event         string `json:"event"`
	OrderID       string `json:"orderId"`
	PaymentID     string `json:"paymentId"`
	Amount        string `json:"amount"`
	PaymentStatus string `json:"paymentStatus"`
}

// VerifyWebhook checks the body signature and normalizes the callback.
// Verification failures are reported through the result, not the error.
func (s SplitPay) VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error) {
	provided := strings.TrimSpace(r.Header.Get(SignatureHeader))
	expected := s.sign(body)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookResult{Valid: false, Err: errors.New("signature mismatch")}, nil
	}
	var payload splitPayWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookResult{Valid: false, Err: fmt.Errorf("decode webhook: %w", err)}, nil
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return WebhookResult{Valid: false, Err: errors.New("webhook missing order id")}, nil
	}
	amount := decimal.Zero
	if raw := strings.TrimSpace(payload.Amount); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return WebhookResult{Valid: false, Err: fmt.Errorf("parse webhook amount %q: %w", raw, err)}, nil
		}
		amount = parsed
	}
	return WebhookResult{
		Valid:             true,
		OrderID:           strings.TrimSpace(payload.OrderID),
		ProviderPaymentID: payload.PaymentID,
		Amount:            amount,
		Status:            NormalizeStatus(payload.PaymentStatus),
		Payload:           body,
	}, nil
}

func (s SplitPay) sign(body []byte) string {
	secret := strings.TrimSpace(s.WebhookSecret)
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeStatus maps the provider's status vocabulary onto ours. Unknown
// labels stay PENDING so a later, better-known callback can still settle.
func NormalizeStatus(status string) store.Status {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "AUTHORIZED", "CAPTURED", "CONFIRMED", "PAID":
		return store.StatusPaid
	case "FAILED", "DECLINED", "REJECTED":
		return store.StatusFailed
	case "CANCELED", "CANCELLED", "VOIDED":
		return store.StatusCanceled
	case "EXPIRED":
		return store.StatusExpired
	case "REFUNDED", "PARTIALLY_REFUNDED", "CHARGEBACK":
		return store.StatusRefunded
	default:
		return store.StatusPending
	}
}
