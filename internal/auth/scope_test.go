package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kastel.org/internal/auth"
)

func TestScopeForPrincipal(t *testing.T) {
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a"}
	s := auth.ScopeFor(p)
	assert.False(t, s.Unrestricted())
	assert.True(t, s.Matches("org-a"))
	assert.False(t, s.Matches("org-b"))

	org, ok := s.OrganizationID()
	assert.True(t, ok)
	assert.Equal(t, "org-a", org)
}

func TestScopeForSuperuser(t *testing.T) {
	s := auth.ScopeFor(auth.Principal{UserID: "usr-root", OrganizationID: "org-a", IsSuperuser: true})
	assert.True(t, s.Unrestricted())
	assert.True(t, s.Matches("org-a"))
	assert.True(t, s.Matches("org-b"))

	_, ok := s.OrganizationID()
	assert.False(t, ok)
}

func TestScopeForOrganization(t *testing.T) {
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a"}

	s, ok := auth.ScopeForOrganization(p, "org-a")
	assert.True(t, ok)
	assert.True(t, s.Matches("org-a"))

	// A foreign organization yields a scope that matches nothing.
	s, ok = auth.ScopeForOrganization(p, "org-b")
	assert.False(t, ok)
	assert.False(t, s.Matches("org-a"))
	assert.False(t, s.Matches("org-b"))

	root := auth.Principal{UserID: "usr-root", IsSuperuser: true, OrganizationID: "org-a"}
	s, ok = auth.ScopeForOrganization(root, "org-b")
	assert.True(t, ok)
	assert.True(t, s.Matches("org-b"))
	assert.False(t, s.Matches("org-a"))
}

func TestZeroScopeMatchesNothing(t *testing.T) {
	var s auth.Scope
	assert.False(t, s.Matches(""))
	assert.False(t, s.Matches("org-a"))
	assert.False(t, s.Unrestricted())
}
