// Package payment creates provider checkout orders and settles their
// webhook callbacks against the local payment state.
package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/cart"
	"github.com/noah-isme/backend-pay/internal/store"
)

// RedirectURLs tells the provider where to send the shopper after checkout.
type RedirectURLs struct {
	Success string `json:"success"`
	Fail    string `json:"fail"`
}

// CreateOrderRequest is the order-creation body sent to the provider.
type CreateOrderRequest struct {
	OrderID                 string        `json:"orderId"`
	CurrencyCode            string        `json:"currencyCode"`
	AvailablePaymentMethods []string      `json:"availablePaymentMethods"`
	RedirectURLs            RedirectURLs  `json:"redirectUrls"`
	TTLSeconds              int64         `json:"ttl"`
	Cart                    *cart.Payload `json:"cart,omitempty"`
}

// CreateOrderResponse carries the provider-hosted checkout location.
type CreateOrderResponse struct {
	ProviderOrderID string `json:"orderId"`
	PaymentURL      string `json:"paymentUrl"`
}

// WebhookResult is a verified, normalized provider callback. When Valid is
// false, Err explains what failed verification.
type WebhookResult struct {
	Valid             bool
	OrderID           string
	ProviderPaymentID string
	Amount            decimal.Decimal
	Status            store.Status
	Payload           []byte
	Err               error
}

// Provider abstracts the upstream payment gateway.
type Provider interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error)
}
