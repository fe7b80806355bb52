package httpapi

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"kastel.org/internal/auth"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req projectRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 200)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
	)
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceProject, OrganizationID: p.OrganizationID}
	if !a.decide(w, r, p, auth.ActionCreate, desc) {
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	project := &auth.Project{
		OrganizationID: p.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		OwnerID:        p.UserID,
		Active:         true,
	}
	if err := a.store.Projects(r.Context()).Create(r.Context(), project); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc := auth.ResourceDescriptor{Type: auth.ResourceProject, OrganizationID: p.OrganizationID}
	if !a.decide(w, r, p, auth.ActionRead, desc) {
		return
	}
	projects, err := a.store.Projects(r.Context()).List(r.Context(), auth.ScopeFor(p))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	// Reads on a listing are organization wide; membership narrows what a
	// plain member sees, while admins and superusers see every project.
	if !p.IsSuperuser && p.RoleName != auth.RoleAdmin {
		ownership := auth.NewOwnershipChecker()
		visible := projects[:0]
		for _, pr := range projects {
			if ownership.IsMember(p.UserID, pr.Descriptor()) {
				visible = append(visible, pr)
			}
		}
		projects = visible
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceProject, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionRead, desc) {
		return
	}
	project, err := a.store.Projects(r.Context()).Find(r.Context(), desc.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceProject, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionUpdate, desc) {
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	projects := a.store.Projects(r.Context())
	project, err := projects.Find(r.Context(), desc.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	project.Name = req.Name
	project.Description = req.Description
	if err := projects.Update(r.Context(), project); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceProject, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionDelete, desc) {
		return
	}
	if err := a.store.Projects(r.Context()).Delete(r.Context(), desc.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "project deleted"})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
}

func (req addMemberRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.UserID, validation.Required),
	)
}

func (a *API) handleAddProjectMember(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceProject, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionUpdate, desc) {
		return
	}

	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Members must live in the project's organization.
	target, err := a.store.Users(r.Context()).Find(r.Context(), req.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if target.OrganizationID != desc.OrganizationID {
		writeError(w, r, http.StatusBadRequest, "user belongs to another organization")
		return
	}

	if err := a.store.Projects(r.Context()).AddMember(r.Context(), desc.ID, req.UserID, req.Admin); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "member added"})
}

func (a *API) handleRemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	desc, ok := a.describe(w, r, auth.ResourceProject, r.PathValue("id"))
	if !ok {
		return
	}
	if !a.decide(w, r, p, auth.ActionUpdate, desc) {
		return
	}
	userID := r.PathValue("userID")
	if userID == desc.OwnerID {
		writeError(w, r, http.StatusBadRequest, "the project owner cannot be removed")
		return
	}
	if err := a.store.Projects(r.Context()).RemoveMember(r.Context(), desc.ID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "member removed"})
}
