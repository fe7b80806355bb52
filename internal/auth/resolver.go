package auth

import (
	"context"
	"fmt"
)

// PermissionSet is the effective permission set of a role, keyed by
// canonical name.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the canonical permission name.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// PermissionResolver expands a role into its effective permission set via
// the role-permission join. The set is recomputed from persisted state on
// every decision, so a permission edit is effective on the very next
// request; there is no process-wide cache to invalidate.
type PermissionResolver struct {
	store PermissionStore
}

// NewPermissionResolver constructs a resolver over the permission store.
func NewPermissionResolver(store PermissionStore) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// Resolve returns the role's effective permissions. Roles grant nothing
// implicitly: an empty role id resolves to the empty set.
func (r *PermissionResolver) Resolve(ctx context.Context, roleID string) (PermissionSet, error) {
	set := make(PermissionSet)
	if roleID == "" {
		return set, nil
	}
	perms, err := r.store.PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("resolve role %s: %w", roleID, err)
	}
	for _, p := range perms {
		set[p.Name] = struct{}{}
	}
	return set, nil
}
