package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kastel.org/internal/auth"
	"kastel.org/internal/auth/authtest"
)

func TestRegistryIsClosedCrossProduct(t *testing.T) {
	perms := auth.Registry()
	// 7 resource types x 4 actions.
	assert.Len(t, perms, 28)

	seen := make(map[string]bool)
	for _, p := range perms {
		assert.Equal(t, auth.PermissionName(p.Resource, p.Action), p.Name)
		assert.False(t, seen[p.Name], "duplicate permission %s", p.Name)
		seen[p.Name] = true
	}
	assert.True(t, seen["project:delete"])
	assert.True(t, seen["organization:read"])
	assert.True(t, seen["agent_config:update"])
}

func TestOwnershipSensitive(t *testing.T) {
	assert.True(t, auth.OwnershipSensitive(auth.ResourceProject, auth.ActionUpdate))
	assert.True(t, auth.OwnershipSensitive(auth.ResourceDocument, auth.ActionDelete))

	// Reads and creates never require ownership, and non-owned resource
	// types never do.
	assert.False(t, auth.OwnershipSensitive(auth.ResourceProject, auth.ActionRead))
	assert.False(t, auth.OwnershipSensitive(auth.ResourceProject, auth.ActionCreate))
	assert.False(t, auth.OwnershipSensitive(auth.ResourceUser, auth.ActionUpdate))
	assert.False(t, auth.OwnershipSensitive(auth.ResourceOrganization, auth.ActionDelete))
}

func TestSystemRolePermissions(t *testing.T) {
	admin := auth.SystemRolePermissions(auth.RoleAdmin)
	assert.Len(t, admin, len(auth.Registry())-2)
	assert.Contains(t, admin, "organization:read")
	assert.NotContains(t, admin, "organization:create")
	assert.NotContains(t, admin, "organization:delete")

	member := auth.SystemRolePermissions(auth.RoleMember)
	assert.Contains(t, member, "project:create")
	assert.NotContains(t, member, "organization:delete")
	assert.NotContains(t, member, "role:create")

	viewer := auth.SystemRolePermissions(auth.RoleViewer)
	for _, name := range viewer {
		assert.Contains(t, name, ":read")
	}
	assert.NotContains(t, viewer, "organization:read")

	assert.Nil(t, auth.SystemRolePermissions("ghost"))
}

func TestValidateRegistry(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewStore()
	perms := store.Permissions(ctx)

	// An empty store has every permission missing.
	err := auth.ValidateRegistry(ctx, perms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	require.NoError(t, perms.Ensure(ctx, auth.Registry()))
	assert.NoError(t, auth.ValidateRegistry(ctx, perms))

	store.PutRawPermission("widget:frobnicate")
	err = auth.ValidateRegistry(ctx, perms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget:frobnicate")
}
