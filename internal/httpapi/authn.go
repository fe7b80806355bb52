package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kastel.org/internal/auth"
	"kastel.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = map[string]bool{
	"/healthz":          true,
	"/readyz":           true,
	"/metrics":          true,
	"/v1/auth/register": true,
	"/v1/auth/login":    true,
	"/v1/auth/refresh":  true,
}

// withAuth authenticates the bearer token on every non-public route and
// attaches the reconstructed Principal to the context. All failures
// collapse into one generic 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveTokenVerification("missing")
			respondUnauthorized(w, r)
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if auth.IsAuthenticationError(err) {
				obs.ObserveTokenVerification("rejected")
				respondUnauthorized(w, r)
				return
			}
			obs.ObserveTokenVerification("error")
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		obs.ObserveTokenVerification("ok")

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
