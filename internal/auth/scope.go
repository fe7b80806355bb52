package auth

// Scope is the mandatory tenant filter for every listing or query. It can
// only be built from a Principal, so a call site cannot forget the filter:
// store listing methods take a Scope parameter, not an optional argument.
//
// The zero value scopes to the empty organization id and therefore matches
// nothing, so a missed ScopeFor call fails closed, never open.
type Scope struct {
	organizationID   string
	allOrganizations bool
}

// ScopeFor derives the scope of a principal: their own organization, or all
// organizations for a superuser.
func ScopeFor(p Principal) Scope {
	if p.IsSuperuser {
		return Scope{allOrganizations: true}
	}
	return Scope{organizationID: p.OrganizationID}
}

// ScopeForOrganization narrows to an explicit organization. Only superusers
// may target a foreign organization; for everyone else ok is false and the
// returned zero scope matches nothing.
func ScopeForOrganization(p Principal, organizationID string) (Scope, bool) {
	if p.IsSuperuser {
		return Scope{organizationID: organizationID}, true
	}
	if organizationID != p.OrganizationID {
		return Scope{}, false
	}
	return Scope{organizationID: organizationID}, true
}

// OrganizationID returns the organization filter. ok is false only for an
// unrestricted superuser scope, in which case callers skip the filter.
func (s Scope) OrganizationID() (string, bool) {
	if s.allOrganizations {
		return "", false
	}
	return s.organizationID, true
}

// Unrestricted reports whether the scope spans all organizations.
func (s Scope) Unrestricted() bool { return s.allOrganizations }

// Matches reports whether a resource organization falls inside the scope.
func (s Scope) Matches(organizationID string) bool {
	if s.allOrganizations {
		return true
	}
	return s.organizationID != "" && s.organizationID == organizationID
}
