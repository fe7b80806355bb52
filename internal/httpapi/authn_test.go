package httpapi

import (
	"context"
	"net/http"
	"testing"

	"kastel.org/internal/auth"
)

// Every authentication failure must produce the same 401 body, so a caller
// cannot distinguish expired from malformed from revoked tokens.
func TestAuthFailuresAreUniform(t *testing.T) {
	api := newTestAPI(t, Options{})
	user, token := api.newUser("alice@example.com", api.orgA.ID, "", false)

	if err := api.svc.LogoutAll(context.Background(), user.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	cases := map[string]string{
		"missing":   "",
		"malformed": "garbage",
		"revoked":   token,
	}
	for name, tok := range cases {
		resp := api.do(http.MethodGet, "/v1/auth/me", tok, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, resp.StatusCode)
		}
		if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
			t.Fatalf("%s: unexpected WWW-Authenticate %q", name, got)
		}
		body := decodeBody(t, resp)
		if body["error"] != genericAuthMessage {
			t.Fatalf("%s: unexpected body %v", name, body)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"  Bearer abc": "abc",
	} {
		got, err := extractBearerToken(header)
		if err != nil || got != want {
			t.Fatalf("extractBearerToken(%q) = %q, %v", header, got, err)
		}
	}
	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		if _, err := extractBearerToken(header); err == nil {
			t.Fatalf("expected error for %q", header)
		}
	}
}

func TestLogoutAllRevokesAccessImmediately(t *testing.T) {
	api := newTestAPI(t, Options{})
	_, token := api.newUser("alice@example.com", api.orgA.ID, "", false)

	resp := api.do(http.MethodPost, "/v1/auth/logout-all", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout-all: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The same token, nowhere near expiry, is dead on the next request.
	resp = api.do(http.MethodGet, "/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout-all, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChangePasswordRevokesOldTokens(t *testing.T) {
	api := newTestAPI(t, Options{})
	_, token := api.newUser("alice@example.com", api.orgA.ID, "", false)

	resp := api.do(http.MethodPost, "/v1/auth/change-password", token, map[string]any{
		"current_password": "correct horse",
		"new_password":     "battery staple 9",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change-password: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after password change, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if _, _, err := api.svc.Login(context.Background(), "alice@example.com", "battery staple 9"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := api.svc.Login(context.Background(), "alice@example.com", "correct horse"); err != auth.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials with old password, got %v", err)
	}
}
