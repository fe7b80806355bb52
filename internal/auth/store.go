package auth

import "context"

// Store describes the persistence operations the auth engine depends on.
// Implementations live in internal/store/pg; tests use in-memory fakes.
type Store interface {
	Organizations(ctx context.Context) OrganizationStore
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	Projects(ctx context.Context) ProjectStore
	Resources(ctx context.Context) ResourceStore
	Audit(ctx context.Context) AuditStore
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context, scope Scope) ([]*Organization, error)
}

// UserStore manages user accounts. UpdatePassword and BumpTokenVersion must
// increment token_version as a single atomic statement at the storage layer.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, scope Scope) ([]*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateRole(ctx context.Context, userID, roleID string) error
	BumpTokenVersion(ctx context.Context, userID string) error
}

// RoleStore manages roles.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindSystem(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context, scope Scope) ([]*Role, error)
	Delete(ctx context.Context, id string) error
}

// PermissionStore manages the permission catalog and the role-permission
// join. SetForRole increments the role's permission_version and refuses
// system roles; EnsureForRole is the additive seeding path that may target
// system roles.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	SetForRole(ctx context.Context, roleID string, names []string) error
	EnsureForRole(ctx context.Context, roleID string, names []string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// RefreshTokenStore manages single-use refresh token markers. Consume must
// be atomic: of N concurrent calls for one id, exactly one succeeds and the
// rest return ErrRevokedToken.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Consume(ctx context.Context, id string) error
	RevokeByUser(ctx context.Context, userID string) error
}

// ProjectStore manages projects, the exemplar creator-owned resource.
// Listing requires a Scope so tenant filtering cannot be omitted.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, scope Scope) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, projectID, userID string, admin bool) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

// ResourceStore produces descriptors for protected objects of any type.
// Inactive rows are reported as ErrNotFound.
type ResourceStore interface {
	Describe(ctx context.Context, resource Resource, id string) (ResourceDescriptor, error)
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
}
