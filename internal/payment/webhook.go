package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pay/internal/common"
	"github.com/noah-isme/backend-pay/internal/obs"
	"github.com/noah-isme/backend-pay/internal/store"
)

const defaultMaxWebhookBody = 64 << 10

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Webhook handles SplitPay callbacks: signature verification, replay
// suppression and idempotent settlement of the payment status.
type Webhook struct {
	Store     Store
	Provider  Provider
	Replay    replayStore
	ReplayTTL time.Duration
	MaxBody   int64
	Logger    zerolog.Logger
}

// Handle processes one provider callback. The provider retries on any
// non-2xx answer, so every terminal outcome it can do nothing about
// (duplicates, already-settled payments) answers 2xx.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	ctx, span := otel.Tracer("payment.Webhook").Start(r.Context(), "PaymentWebhook.Handle")
	defer span.End()

	outcome := "error"
	defer func() {
		span.SetAttributes(attribute.String("webhook.outcome", outcome))
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(outcome).Inc()
		}
	}()

	maxBody := h.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxWebhookBody
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if int64(len(body)) > maxBody {
		outcome = "too_large"
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "webhook body exceeds limit", nil)
		return
	}
	result, err := h.Provider.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		outcome = "invalid_signature"
		h.Logger.Warn().AnErr("reason", result.Err).Msg("webhook rejected")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	// Replay suppression is best effort. A broken cache must not stall
	// settlement, so errors fall through to the idempotent update below.
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerName, common.Sha256Hex(body))
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			h.Logger.Warn().Err(err).Msg("webhook replay store unavailable")
		} else if !fresh {
			outcome = "replay"
			common.JSON(w, http.StatusOK, map[string]bool{"duplicate": true})
			return
		}
	}

	payment, err := h.Store.GetPaymentByOrderID(ctx, result.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			outcome = "not_found"
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	if result.Amount.IsPositive() && !payment.Amount.Equal(result.Amount) {
		outcome = "amount_mismatch"
		h.Logger.Warn().
			Str("order_id", result.OrderID).
			Str("expected", payment.Amount.StringFixed(2)).
			Str("got", result.Amount.StringFixed(2)).
			Msg("webhook amount mismatch")
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}

	span.SetAttributes(
		attribute.String("order.id", result.OrderID),
		attribute.String("payment.status.current", string(payment.Status)),
		attribute.String("payment.status.incoming", string(result.Status)),
	)
	next, apply := Transition(payment.Status, result.Status)
	if !apply {
		outcome = "ignored"
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.Store.UpdatePaymentStatus(ctx, payment.ID, next, providerName, result.Payload); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
		return
	}
	outcome = "applied"
	h.Logger.Info().
		Str("order_id", result.OrderID).
		Str("from", string(payment.Status)).
		Str("to", string(next)).
		Msg("payment status updated")
	w.WriteHeader(http.StatusNoContent)
}
