package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"kastel.org/internal/auth"
)

// genericAuthMessage is the single body returned for every authentication
// failure, so expired, malformed and revoked tokens are indistinguishable
// from outside.
const genericAuthMessage = "authentication required"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, genericAuthMessage)
}

// respondDecision translates a denial. CrossOrgAccess maps to 404 so the
// existence of a resource in a foreign tenant is never revealed; the other
// reasons map to 403 with bodies that stay silent about the resource.
func respondDecision(w http.ResponseWriter, r *http.Request, d auth.Decision) {
	switch d.Reason {
	case auth.ReasonCrossOrgAccess:
		writeError(w, r, http.StatusNotFound, "resource not found")
	case auth.ReasonNotOwner:
		writeError(w, r, http.StatusForbidden, "you do not have access to perform this action")
	default:
		writeError(w, r, http.StatusForbidden, "permission denied")
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case auth.IsAuthenticationError(err):
		respondUnauthorized(w, r)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "resource already exists")
	case errors.Is(err, auth.ErrSystemRole):
		writeError(w, r, http.StatusConflict, "system roles cannot be modified")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// principal pulls the authenticated principal or writes the generic 401.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondUnauthorized(w, r)
		return auth.Principal{}, false
	}
	return p, true
}

// describe loads a resource descriptor; missing and soft-deleted resources
// both surface as 404.
func (a *API) describe(w http.ResponseWriter, r *http.Request, resource auth.Resource, id string) (auth.ResourceDescriptor, bool) {
	desc, err := a.store.Resources(r.Context()).Describe(r.Context(), resource, id)
	if err != nil {
		handleServiceError(w, r, err)
		return auth.ResourceDescriptor{}, false
	}
	return desc, true
}

// decide runs the guard and writes the translated denial when access is
// refused.
func (a *API) decide(w http.ResponseWriter, r *http.Request, p auth.Principal, action auth.Action, desc auth.ResourceDescriptor) bool {
	d := a.guard.Decide(r.Context(), p, action, desc)
	if !d.Allowed {
		respondDecision(w, r, d)
		return false
	}
	return true
}
