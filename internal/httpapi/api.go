// Package httpapi exposes the platform over HTTP. Every protected handler
// resolves a ResourceDescriptor and calls AccessGuard.Decide before touching
// anything; this package owns the translation of decisions and errors into
// status codes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"kastel.org/internal/audit"
	"kastel.org/internal/auth"
	"kastel.org/internal/obs"
)

// Options carries transport-level tunables.
type Options struct {
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
	AllowedOrigins     []string
	Version            string
}

// ReadyProbe checks downstream readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	guard    *auth.AccessGuard
	store    auth.Store
	recorder *audit.Recorder
	logger   *zap.Logger
	probe    ReadyProbe
	opts     Options
}

// New wires routes against the auth engine.
func New(svc *auth.Service, guard *auth.AccessGuard, store auth.Store, recorder *audit.Recorder, logger *zap.Logger, probe ReadyProbe, opts Options) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		mux:      http.NewServeMux(),
		auth:     svc,
		guard:    guard,
		store:    store,
		recorder: recorder,
		logger:   logger,
		probe:    probe,
		opts:     opts,
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/auth/change-password", a.handleChangePassword)
	a.mux.HandleFunc("POST /v1/auth/logout-all", a.handleLogoutAll)
	a.mux.HandleFunc("GET /v1/auth/me", a.handleMe)

	a.mux.HandleFunc("POST /v1/organizations", a.handleCreateOrganization)
	a.mux.HandleFunc("GET /v1/organizations", a.handleListOrganizations)
	a.mux.HandleFunc("POST /v1/organizations/{id}/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /v1/organizations/{id}/users", a.handleListUsers)
	a.mux.HandleFunc("PUT /v1/users/{id}/role", a.handleAssignRole)
	a.mux.HandleFunc("POST /v1/organizations/{id}/roles", a.handleCreateRole)
	a.mux.HandleFunc("GET /v1/organizations/{id}/roles", a.handleListRoles)
	a.mux.HandleFunc("PUT /v1/roles/{id}/permissions", a.handleSetRolePermissions)
	a.mux.HandleFunc("DELETE /v1/roles/{id}", a.handleDeleteRole)

	a.mux.HandleFunc("POST /v1/projects", a.handleCreateProject)
	a.mux.HandleFunc("GET /v1/projects", a.handleListProjects)
	a.mux.HandleFunc("GET /v1/projects/{id}", a.handleGetProject)
	a.mux.HandleFunc("PUT /v1/projects/{id}", a.handleUpdateProject)
	a.mux.HandleFunc("DELETE /v1/projects/{id}", a.handleDeleteProject)
	a.mux.HandleFunc("POST /v1/projects/{id}/members", a.handleAddProjectMember)
	a.mux.HandleFunc("DELETE /v1/projects/{id}/members/{userID}", a.handleRemoveProjectMember)

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	if a.opts.RateLimitPerSecond > 0 {
		h = RateLimit(h, a.opts.RateLimitBurst, a.opts.RateLimitPerSecond)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   a.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	h = c.Handler(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.logger)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kastel-api",
		"version": a.opts.Version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.probe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
