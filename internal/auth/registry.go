package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Resource identifies a protected resource type.
type Resource string

// Action identifies an operation on a resource.
type Action string

const (
	ResourceOrganization Resource = "organization"
	ResourceUser         Resource = "user"
	ResourceRole         Resource = "role"
	ResourceProject      Resource = "project"
	ResourceConversation Resource = "conversation"
	ResourceAgentConfig  Resource = "agent_config"
	ResourceDocument     Resource = "document"
)

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// System role names. The admin role elevates past ownership checks inside
// its own organization.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// PermissionName builds the canonical "resource:action" permission name.
func PermissionName(resource Resource, action Action) string {
	return string(resource) + ":" + string(action)
}

var registryResources = []Resource{
	ResourceOrganization,
	ResourceUser,
	ResourceRole,
	ResourceProject,
	ResourceConversation,
	ResourceAgentConfig,
	ResourceDocument,
}

var registryActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// Creator-owned resource types: update and delete on these additionally
// require ownership or an elevating relationship.
var ownershipSensitive = map[Resource]bool{
	ResourceProject:      true,
	ResourceConversation: true,
	ResourceAgentConfig:  true,
	ResourceDocument:     true,
}

// OwnershipSensitive reports whether action on resource must pass the
// ownership branch of the decision algorithm.
func OwnershipSensitive(resource Resource, action Action) bool {
	if !ownershipSensitive[resource] {
		return false
	}
	return action == ActionUpdate || action == ActionDelete
}

// Registry returns the closed permission catalog: the full cross product of
// resources and actions. Permission names used anywhere in code must come
// from this set.
func Registry() []Permission {
	perms := make([]Permission, 0, len(registryResources)*len(registryActions))
	for _, res := range registryResources {
		for _, act := range registryActions {
			perms = append(perms, Permission{
				Name:        PermissionName(res, act),
				Resource:    res,
				Action:      act,
				Description: fmt.Sprintf("%s %s", act, strings.ReplaceAll(string(res), "_", " ")),
			})
		}
	}
	return perms
}

// SystemRolePermissions returns the fixed permission set of a system role.
// Unknown names return nil.
func SystemRolePermissions(roleName string) []string {
	switch roleName {
	case RoleAdmin:
		// Tenant lifecycle is platform-level: no system role grants
		// organization create or delete, so only superusers pass those
		// decisions.
		names := make([]string, 0, len(registryResources)*len(registryActions))
		for _, p := range Registry() {
			if p.Resource == ResourceOrganization && p.Action != ActionRead && p.Action != ActionUpdate {
				continue
			}
			names = append(names, p.Name)
		}
		return names
	case RoleMember:
		return []string{
			PermissionName(ResourceUser, ActionRead),
			PermissionName(ResourceProject, ActionCreate),
			PermissionName(ResourceProject, ActionRead),
			PermissionName(ResourceProject, ActionUpdate),
			PermissionName(ResourceConversation, ActionCreate),
			PermissionName(ResourceConversation, ActionRead),
			PermissionName(ResourceConversation, ActionUpdate),
			PermissionName(ResourceConversation, ActionDelete),
			PermissionName(ResourceAgentConfig, ActionCreate),
			PermissionName(ResourceAgentConfig, ActionRead),
			PermissionName(ResourceAgentConfig, ActionUpdate),
			PermissionName(ResourceDocument, ActionCreate),
			PermissionName(ResourceDocument, ActionRead),
			PermissionName(ResourceDocument, ActionUpdate),
			PermissionName(ResourceDocument, ActionDelete),
		}
	case RoleViewer:
		var names []string
		for _, res := range registryResources {
			if res == ResourceOrganization || res == ResourceRole {
				continue
			}
			names = append(names, PermissionName(res, ActionRead))
		}
		return names
	default:
		return nil
	}
}

// ValidateRegistry compares the code-level catalog against persisted
// permission rows and reports drift in either direction. Run at startup so
// a mismatch fails deployment instead of a request.
func ValidateRegistry(ctx context.Context, store PermissionStore) error {
	persisted, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list permissions: %w", err)
	}
	known := make(map[string]bool, len(persisted))
	for _, p := range persisted {
		known[p.Name] = true
	}

	var missing, unknown []string
	expected := make(map[string]bool)
	for _, p := range Registry() {
		expected[p.Name] = true
		if !known[p.Name] {
			missing = append(missing, p.Name)
		}
	}
	for name := range known {
		if !expected[name] {
			unknown = append(unknown, name)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	return fmt.Errorf("permission registry drift: missing=%v unknown=%v", missing, unknown)
}
