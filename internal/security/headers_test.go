package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithHeaders(t *testing.T, h Headers, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHeadersMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://pay.example.com/api/v1/payments", nil)
	req.TLS = &tls.ConnectionState{}

	rr := serveWithHeaders(t, Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security = %q", got)
	}
}

func TestHeadersMiddlewareSkipsHSTSWithoutTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://pay.example.com/healthz", nil)

	rr := serveWithHeaders(t, Headers{Enable: true, EnableHSTS: true}, req)

	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent on plaintext responses")
	}
	if rr.Header().Get("X-Content-Type-Options") == "" {
		t.Fatal("expected remaining headers on plaintext responses")
	}
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://pay.example.com/", nil)

	rr := serveWithHeaders(t, Headers{Enable: false, EnableHSTS: true}, req)

	if rr.Header().Get("X-Content-Type-Options") != "" {
		t.Fatal("expected no headers when disabled")
	}
}
