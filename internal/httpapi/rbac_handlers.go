package httpapi

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"kastel.org/internal/auth"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

func (req createOrganizationRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 200)),
	)
}

// Creating a tenant is a platform-level operation: no system role grants
// organization:create, so only the superuser bypass passes this decision.
func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceOrganization, OrganizationID: p.OrganizationID}
	if !a.decide(w, r, p, auth.ActionCreate, desc) {
		return
	}
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	org := &auth.Organization{Name: req.Name, Active: true}
	if err := a.store.Organizations(r.Context()).Create(r.Context(), org); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceOrganization, OrganizationID: p.OrganizationID}
	if !a.decide(w, r, p, auth.ActionRead, desc) {
		return
	}
	orgs, err := a.store.Organizations(r.Context()).List(r.Context(), auth.ScopeFor(p))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

func (req createUserRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required, is.EmailFormat),
		validation.Field(&req.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Password, validation.Required, validation.Length(8, 128)),
	)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	desc := auth.ResourceDescriptor{Type: auth.ResourceUser, OrganizationID: orgID}
	if !a.decide(w, r, p, auth.ActionCreate, desc) {
		return
	}

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	roleID := req.RoleID
	if roleID == "" {
		role, err := a.store.Roles(r.Context()).FindSystem(r.Context(), auth.RoleMember)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		roleID = role.ID
	} else if !a.roleAssignable(w, r, orgID, roleID) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	user := &auth.User{
		OrganizationID: orgID,
		Email:          req.Email,
		Username:       req.Username,
		PasswordHash:   hash,
		RoleID:         roleID,
		Active:         true,
	}
	if err := a.store.Users(r.Context()).Create(r.Context(), user); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// roleAssignable rejects roles that belong to another organization. System
// roles (empty organization id) are assignable everywhere.
func (a *API) roleAssignable(w http.ResponseWriter, r *http.Request, orgID, roleID string) bool {
	role, err := a.store.Roles(r.Context()).Find(r.Context(), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	if role.OrganizationID != "" && role.OrganizationID != orgID {
		writeError(w, r, http.StatusBadRequest, "role belongs to another organization")
		return false
	}
	return true
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	desc := auth.ResourceDescriptor{Type: auth.ResourceUser, OrganizationID: orgID}
	if !a.decide(w, r, p, auth.ActionRead, desc) {
		return
	}
	scope, ok := auth.ScopeForOrganization(p, orgID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	users, err := a.store.Users(r.Context()).List(r.Context(), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (req assignRoleRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.RoleID, validation.Required),
	)
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceUser, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionUpdate, desc) {
		return
	}

	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.roleAssignable(w, r, desc.OrganizationID, req.RoleID) {
		return
	}
	if err := a.store.Users(r.Context()).UpdateRole(r.Context(), desc.ID, req.RoleID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "role assigned"})
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (req createRoleRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Description, validation.Length(0, 500)),
	)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	desc := auth.ResourceDescriptor{Type: auth.ResourceRole, OrganizationID: orgID}
	if !a.decide(w, r, p, auth.ActionCreate, desc) {
		return
	}

	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role := &auth.Role{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := a.store.Roles(r.Context()).Create(r.Context(), role); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if len(req.Permissions) > 0 {
		if err := a.store.Permissions(r.Context()).SetForRole(r.Context(), role.ID, req.Permissions); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	desc := auth.ResourceDescriptor{Type: auth.ResourceRole, OrganizationID: orgID}
	if !a.decide(w, r, p, auth.ActionRead, desc) {
		return
	}
	scope, ok := auth.ScopeForOrganization(p, orgID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roles, err := a.store.Roles(r.Context()).List(r.Context(), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	roleID := r.PathValue("id")
	role, err := a.store.Roles(r.Context()).Find(r.Context(), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceRole, ID: role.ID, OrganizationID: role.OrganizationID}
	// The decision runs first so a denied caller learns nothing about the
	// role, not even its system status.
	if !a.decide(w, r, p, auth.ActionUpdate, desc) {
		return
	}
	if role.IsSystem {
		writeError(w, r, http.StatusConflict, "system roles cannot be modified")
		return
	}

	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.Permissions(r.Context()).SetForRole(r.Context(), role.ID, req.Permissions); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "permissions updated"})
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	roleID := r.PathValue("id")
	role, err := a.store.Roles(r.Context()).Find(r.Context(), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceRole, ID: role.ID, OrganizationID: role.OrganizationID}
	if !a.decide(w, r, p, auth.ActionDelete, desc) {
		return
	}
	if err := a.store.Roles(r.Context()).Delete(r.Context(), roleID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "role deleted"})
}
