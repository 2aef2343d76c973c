package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pay/internal/cart"
	"github.com/noah-isme/backend-pay/internal/discount"
	"github.com/noah-isme/backend-pay/internal/money"
	"github.com/noah-isme/backend-pay/internal/obs"
	"github.com/noah-isme/backend-pay/internal/order"
	"github.com/noah-isme/backend-pay/internal/store"
)

const providerName = "splitpay"

const defaultPaymentTTL = 15 * time.Minute

// ErrOrderAlreadyPaid rejects a new checkout for an order that settled.
var ErrOrderAlreadyPaid = errors.New("order already paid")

// Store is the persistence surface the payment service needs.
type Store interface {
	UpsertPayment(ctx context.Context, p store.Payment) (store.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status store.Status, provider string, payload []byte) error
	InsertPaymentEvent(ctx context.Context, ev store.Event) error
}

// Service coordinates cart building, provider orders and payment state.
type Service struct {
	Store      Store
	Provider   Provider
	Carts      *cart.Builder
	PaymentTTL time.Duration
	Redirects  RedirectURLs
}

// CreateParams describes one checkout attempt.
type CreateParams struct {
	Order     *order.Order
	Mode      store.Mode
	Redirects *RedirectURLs
	TTL       time.Duration
}

// CreateResult is what the caller needs to send the shopper to checkout.
type CreateResult struct {
	OrderID    string
	Status     store.Status
	PaymentURL string
	ExpiresAt  time.Time
	Reused     bool
}

// Create opens (or reuses) a provider checkout for the order. A PENDING
// payment with an unexpired URL is returned as is so retries do not spawn
// parallel checkouts for the same order.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if s == nil || s.Store == nil || s.Provider == nil || s.Carts == nil {
		return nil, errors.New("payment service not configured")
	}
	o := params.Order
	if o == nil || strings.TrimSpace(o.ID) == "" {
		return nil, errors.New("order id is required")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Create")
	defer span.End()

	mode := params.Mode
	if mode == "" {
		mode = store.ModeCard
	}
	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("order.id", o.ID),
			attribute.String("payment.mode", string(mode)),
			attribute.String("payment.result", result),
			attribute.Float64("payment.create.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.PaymentCreateTotal != nil {
			obs.PaymentCreateTotal.WithLabelValues(modeLabel(mode), result).Inc()
		}
	}()

	existing, err := s.Store.GetPaymentByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		if existing.Status == store.StatusPaid {
			return nil, ErrOrderAlreadyPaid
		}
		if existing.Status == store.StatusPending && existing.Mode == mode &&
			existing.PaymentURL != "" && existing.ExpiresAt.After(time.Now()) {
			result = "reused"
			return &CreateResult{
				OrderID:    o.ID,
				Status:     existing.Status,
				PaymentURL: existing.PaymentURL,
				ExpiresAt:  existing.ExpiresAt,
				Reused:     true,
			}, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	payload, err := s.Carts.Build(ctx, o)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	recordCartMetrics(payload)

	ttl := params.TTL
	if ttl <= 0 {
		ttl = s.PaymentTTL
	}
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	redirects := s.Redirects
	if params.Redirects != nil {
		redirects = *params.Redirects
	}
	req := CreateOrderRequest{
		OrderID:                 o.ID,
		CurrencyCode:            o.Currency,
		AvailablePaymentMethods: methodsFor(mode),
		RedirectURLs:            redirects,
		TTLSeconds:              int64(ttl.Seconds()),
		Cart:                    payload,
	}
	resp, err := s.Provider.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	saved, err := s.Store.UpsertPayment(ctx, store.Payment{
		ID:              existing.ID,
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		Currency:        o.Currency,
		Amount:          money.Round2(o.Total),
		Mode:            mode,
		Status:          store.StatusPending,
		ProviderOrderID: resp.ProviderOrderID,
		PaymentURL:      resp.PaymentURL,
		ExpiresAt:       time.Now().Add(ttl),
	})
	if err != nil {
		return nil, err
	}
	_ = s.Store.InsertPaymentEvent(ctx, store.Event{
		PaymentID: saved.ID,
		Provider:  providerName,
		Status:    store.StatusPending,
		Payload:   toJSON(map[string]any{"request": req, "response": resp}),
	})
	result = "success"
	return &CreateResult{
		OrderID:    o.ID,
		Status:     saved.Status,
		PaymentURL: saved.PaymentURL,
		ExpiresAt:  saved.ExpiresAt,
	}, nil
}

// Get returns the stored payment for an order.
func (s *Service) Get(ctx context.Context, orderID string) (store.Payment, error) {
	if s == nil || s.Store == nil {
		return store.Payment{}, errors.New("payment service not configured")
	}
	return s.Store.GetPaymentByOrderID(ctx, strings.TrimSpace(orderID))
}

// PreviewResult exposes the computed cart together with the discount
// figures so a storefront can show the math before checkout.
type PreviewResult struct {
	Cart           *cart.Payload     `json:"cart"`
	TotalDiscount  string            `json:"totalDiscount"`
	BySource       map[string]string `json:"discountBySource"`
	ItemDiscounts  map[string]string `json:"itemDiscounts"`
	DiscountsValid bool              `json:"discountsValid"`
}

// Preview builds the provider cart without touching the provider or the
// database.
func (s *Service) Preview(ctx context.Context, o *order.Order) (*PreviewResult, error) {
	if s == nil || s.Carts == nil {
		return nil, errors.New("payment service not configured")
	}
	payload, err := s.Carts.Build(ctx, o)
	if err != nil {
		return nil, err
	}
	items := make(map[string]string, len(payload.ItemDiscounts))
	for id, amount := range payload.ItemDiscounts {
		items[id] = money.String2(amount)
	}
	return &PreviewResult{
		Cart:          payload,
		TotalDiscount: money.String2(payload.Discount.Total),
		BySource: map[string]string{
			"coupons":  money.String2(payload.Discount.Coupons),
			"bonus":    money.String2(payload.Discount.Bonus),
			"fees":     money.String2(payload.Discount.Fees),
			"shipping": money.String2(payload.Discount.Shipping),
		},
		ItemDiscounts:  items,
		DiscountsValid: discount.ValidateDiscounts(o, payload.ItemDiscounts),
	}, nil
}

func methodsFor(mode store.Mode) []string {
	if mode == store.ModeSplit {
		return []string{"SPLIT"}
	}
	return []string{"CARD"}
}

func modeLabel(mode store.Mode) string {
	return strings.ToLower(string(mode))
}

func recordCartMetrics(p *cart.Payload) {
	if p == nil {
		return
	}
	if obs.CartReconcileTotal != nil && !p.Adjustment.IsZero() {
		direction := "up"
		if p.Adjustment.IsNegative() {
			direction = "down"
		}
		obs.CartReconcileTotal.WithLabelValues(direction).Inc()
	}
	if obs.DiscountAmountTotal != nil {
		for source, amount := range map[string]decimal.Decimal{
			"coupons":  p.Discount.Coupons,
			"bonus":    p.Discount.Bonus,
			"fees":     p.Discount.Fees,
			"shipping": p.Discount.Shipping,
		} {
			if amount.IsPositive() {
				obs.DiscountAmountTotal.WithLabelValues(source).Add(amount.InexactFloat64())
			}
		}
	}
}

func toJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
