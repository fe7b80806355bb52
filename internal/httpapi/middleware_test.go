package httpapi

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
)

func TestRateLimitExceeded(t *testing.T) {
	handler := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 2, 1)

	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			if rr.Header().Get("Retry-After") == "" {
				t.Fatal("429 without Retry-After")
			}
			break
		}
	}
	if !limited {
		t.Fatal("burst of 10 requests was never rate limited")
	}

	// A different client address holds its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("fresh client: expected 200, got %d", rr.Code)
	}
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	rr := httptest.NewRecorder()
	RequestID(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rr.Header().Get(requestIDHeader)
	if got == "" || got != seen {
		t.Fatalf("request id header %q, context %q", got, seen)
	}
	if !regexp.MustCompile(`^[0-9a-f-]{36}$`).MatchString(got) {
		t.Fatalf("request id is not a uuid: %q", got)
	}
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) != "req-42" {
			t.Fatalf("inbound request id lost")
		}
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	RequestID(inner).ServeHTTP(rr, req)
	if rr.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("response header lost inbound id")
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMaxBodyBytesRejectsOversizedPayload(t *testing.T) {
	api := newTestAPI(t, Options{MaxBodyBytes: 64})

	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	resp := api.do(http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": string(big),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", resp.StatusCode)
	}
}
