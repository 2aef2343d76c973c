package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareEnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	lim, err := NewRedisLimiter(client, "1-M")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	wrapped := Handler{
		Limiter: lim,
		Key:     func(*http.Request) string { return "shop-7" },
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req.Clone(req.Context()))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", got)
	}

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req.Clone(req.Context()))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", second.Code)
	}
	if got := second.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("X-RateLimit-Limit = %q", got)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing on 429")
	}
	if !strings.Contains(second.Body.String(), "RATE_LIMITED") {
		t.Fatalf("429 body = %s", second.Body.String())
	}
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	lim, err := NewRedisLimiter(client, "1-M")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	// Kill the store before the first request.
	mr.Close()

	var reported error
	wrapped := Handler{
		Limiter: lim,
		Key:     func(*http.Request) string { return "shop-7" },
		OnError: func(err error) { reported = err },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status with dead store = %d", rr.Code)
	}
	if reported == nil {
		t.Fatal("expected the store error to be reported")
	}
}

func TestMiddlewareSkipsWithoutLimiter(t *testing.T) {
	wrapped := Handler{}.Middleware(okHandler())
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payments/wc-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
