package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pay/internal/cart"
	"github.com/noah-isme/backend-pay/internal/common"
	"github.com/noah-isme/backend-pay/internal/order"
	"github.com/noah-isme/backend-pay/internal/store"
)

// Handler exposes HTTP endpoints for checkout creation, status polling and
// cart previews.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createReq struct {
	Order      order.Order   `json:"order" validate:"required"`
	Mode       string        `json:"mode" validate:"omitempty,oneof=CARD SPLIT"`
	Redirects  *RedirectURLs `json:"redirectUrls"`
	TTLSeconds int64         `json:"ttlSeconds" validate:"omitempty,gt=0"`
}

type createResp struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	PaymentURL string    `json:"paymentUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Reused     bool      `json:"reused,omitempty"`
}

// Create opens a provider checkout for the submitted order snapshot.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payment request", validationDetails(err))
		return
	}
	mode := store.Mode(strings.ToUpper(strings.TrimSpace(req.Mode)))
	res, err := h.Svc.Create(r.Context(), CreateParams{
		Order:     &req.Order,
		Mode:      mode,
		Redirects: req.Redirects,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, createResp{
		OrderID:    res.OrderID,
		Status:     string(res.Status),
		PaymentURL: res.PaymentURL,
		ExpiresAt:  res.ExpiresAt,
		Reused:     res.Reused,
	})
}

type statusResp struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	PaymentURL string    `json:"paymentUrl,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Get reports the stored payment state for an order.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderID is required", nil)
		return
	}
	p, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, statusResp{
		OrderID:    p.OrderID,
		Status:     string(p.Status),
		Mode:       string(p.Mode),
		Amount:     p.Amount.StringFixed(2),
		Currency:   p.Currency,
		PaymentURL: p.PaymentURL,
		ExpiresAt:  p.ExpiresAt,
		UpdatedAt:  p.UpdatedAt,
	})
}

// Preview returns the provider cart that Create would send, plus the
// discount math, without creating anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var o order.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.validate(o); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order", validationDetails(err))
		return
	}
	res, err := h.Svc.Preview(r.Context(), &o)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderAlreadyPaid):
		common.JSONError(w, http.StatusConflict, "ORDER_ALREADY_PAID", "order already paid", nil)
	case errors.Is(err, cart.ErrProductUnresolved):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_UNRESOLVED", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found", nil)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		common.JSONError(w, http.StatusGatewayTimeout, "PROVIDER_TIMEOUT", "provider did not answer in time", nil)
	default:
		var perr *ProviderError
		if errors.As(err, &perr) {
			common.JSONError(w, http.StatusBadGateway, "PROVIDER_ERROR", "provider rejected the order", map[string]any{
				"reasonCode": perr.ReasonCode,
				"message":    perr.Message,
			})
			return
		}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		return fields
	}
	return nil
}
