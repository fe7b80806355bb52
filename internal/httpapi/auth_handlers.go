package httpapi

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"kastel.org/internal/auth"
)

type registerRequest struct {
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
}

func (req registerRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.OrganizationID, validation.Required),
		validation.Field(&req.Email, validation.Required, is.EmailFormat),
		validation.Field(&req.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Password, validation.Required, validation.Length(8, 128)),
	)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (a *API) tokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(a.auth.Tokens().AccessTTL().Seconds()),
	}
}

func (a *API) recordAuthEvent(r *http.Request, action string, user *auth.User, result string) {
	a.recorder.RecordEvent(r.Context(), &auth.AuditEntry{
		OccurredAt:   time.Now().UTC(),
		ActorUserID:  user.ID,
		ActorOrgID:   user.OrganizationID,
		Action:       action,
		ResourceType: string(auth.ResourceUser),
		ResourceID:   user.ID,
		Result:       result,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, pair, err := a.auth.Register(r.Context(), auth.RegisterInput{
		OrganizationID: req.OrganizationID,
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	a.recordAuthEvent(r, "user_registered", user, "success")
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": a.tokenResponse(pair),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req loginRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required, is.EmailFormat),
		validation.Field(&req.Password, validation.Required),
	)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	a.recordAuthEvent(r, "login", user, "success")
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (req changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.CurrentPassword, validation.Required),
		validation.Field(&req.NewPassword, validation.Required, validation.Length(8, 128)),
	)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.auth.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	a.recorder.RecordEvent(r.Context(), &auth.AuditEntry{
		OccurredAt:   time.Now().UTC(),
		ActorUserID:  p.UserID,
		ActorOrgID:   p.OrganizationID,
		Action:       "password_changed",
		ResourceType: string(auth.ResourceUser),
		ResourceID:   p.UserID,
		Result:       "success",
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password changed"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.auth.LogoutAll(r.Context(), p.UserID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.recorder.RecordEvent(r.Context(), &auth.AuditEntry{
		OccurredAt:   time.Now().UTC(),
		ActorUserID:  p.UserID,
		ActorOrgID:   p.OrganizationID,
		Action:       "logout_all",
		ResourceType: string(auth.ResourceUser),
		ResourceID:   p.UserID,
		Result:       "success",
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "all sessions revoked"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	user, err := a.store.Users(r.Context()).Find(r.Context(), p.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"role_name": p.RoleName,
	})
}
