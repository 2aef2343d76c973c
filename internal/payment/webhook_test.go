package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pay/internal/payment"
	"github.com/noah-isme/backend-pay/internal/store"
)

const webhookSecret = "hook-secret"

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/splitpay", strings.NewReader(body))
	req.Header.Set(payment.SignatureHeader, signBody(body))
	return req
}

func newWebhook(st *fakeStore, replay *redis.Client) payment.Webhook {
	h := payment.Webhook{
		Store:     st,
		Provider:  payment.SplitPay{WebhookSecret: webhookSecret},
		ReplayTTL: time.Hour,
		Logger:    zerolog.Nop(),
	}
	if replay != nil {
		h.Replay = replay
	}
	return h
}

func seedPending(st *fakeStore, orderID, amount string, t *testing.T) store.Payment {
	t.Helper()
	p := store.Payment{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  store.StatusPending,
		Mode:    store.ModeCard,
		Amount:  dec(t, amount),
	}
	st.payments[orderID] = p
	return p
}

func TestWebhookSettlesPayment(t *testing.T) {
	st := newFakeStore()
	seedPending(st, "w-700", "120.50", t)
	h := newWebhook(st, nil)

	body := `{"event":"payment.updated","orderId":"w-700","paymentId":"sp-7","amount":"120.50","paymentStatus":"CAPTURED"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if st.payments["w-700"].Status != store.StatusPaid {
		t.Fatalf("payment status = %s", st.payments["w-700"].Status)
	}
	if len(st.events) != 1 || st.events[0].Status != store.StatusPaid {
		t.Fatalf("events = %+v", st.events)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	st := newFakeStore()
	seedPending(st, "w-700", "120.50", t)
	h := newWebhook(st, nil)

	body := `{"orderId":"w-700","paymentStatus":"CAPTURED"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/splitpay", strings.NewReader(body))
	req.Header.Set(payment.SignatureHeader, "0000")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if st.payments["w-700"].Status != store.StatusPending {
		t.Fatal("unverified webhook must not settle anything")
	}
}

func TestWebhookDuplicateIsAcknowledged(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	st := newFakeStore()
	seedPending(st, "w-700", "120.50", t)
	h := newWebhook(st, client)

	body := `{"orderId":"w-700","amount":"120.50","paymentStatus":"CAPTURED"}`

	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first delivery status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d, want 200", rec.Code)
	}
	if len(st.updates) != 1 {
		t.Fatalf("updates = %d, duplicate must not settle twice", len(st.updates))
	}
}

func TestWebhookReplayStoreDownFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	mr.Close()

	st := newFakeStore()
	seedPending(st, "w-700", "120.50", t)
	h := newWebhook(st, client)

	body := `{"orderId":"w-700","amount":"120.50","paymentStatus":"CAPTURED"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, settlement must not depend on the replay store", rec.Code)
	}
	if st.payments["w-700"].Status != store.StatusPaid {
		t.Fatalf("payment status = %s", st.payments["w-700"].Status)
	}
}

func TestWebhookAmountMismatch(t *testing.T) {
	st := newFakeStore()
	seedPending(st, "w-700", "120.50", t)
	h := newWebhook(st, nil)

	body := `{"orderId":"w-700","amount":"99.99","paymentStatus":"CAPTURED"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if st.payments["w-700"].Status != store.StatusPending {
		t.Fatal("mismatched amount must not settle")
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	h := newWebhook(newFakeStore(), nil)

	body := `{"orderId":"nope","paymentStatus":"CAPTURED"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookLateStatusIgnored(t *testing.T) {
	st := newFakeStore()
	p := seedPending(st, "w-700", "120.50", t)
	p.Status = store.StatusPaid
	st.payments["w-700"] = p
	h := newWebhook(st, nil)

	body := `{"orderId":"w-700","amount":"120.50","paymentStatus":"PENDING"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, late callbacks are acknowledged", rec.Code)
	}
	if len(st.updates) != 0 {
		t.Fatal("late pending must not downgrade a settled payment")
	}
	if st.payments["w-700"].Status != store.StatusPaid {
		t.Fatalf("payment status = %s", st.payments["w-700"].Status)
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	st := newFakeStore()
	h := newWebhook(st, nil)
	h.MaxBody = 64

	body := `{"orderId":"w-700","padding":"` + strings.Repeat("x", 128) + `"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookRefundAfterSettlement(t *testing.T) {
	st := newFakeStore()
	p := seedPending(st, "w-700", "120.50", t)
	p.Status = store.StatusPaid
	st.payments["w-700"] = p
	h := newWebhook(st, nil)

	body := `{"orderId":"w-700","amount":"120.50","paymentStatus":"REFUNDED"}`
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if st.payments["w-700"].Status != store.StatusRefunded {
		t.Fatalf("payment status = %s", st.payments["w-700"].Status)
	}
}
