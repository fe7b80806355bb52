package auth

import "time"

// Organization is the tenant isolation boundary. No resource access crosses
// it except for superusers.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human or service account. Every user belongs to exactly one
// organization and holds exactly one role.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	RoleID         string    `json:"role_id"`
	IsSuperuser    bool      `json:"is_superuser"`
	Active         bool      `json:"active"`
	TokenVersion   int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role groups permissions. An empty OrganizationID marks a system-wide role;
// system roles keep their permission set fixed after seeding.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	IsSystem       bool      `json:"is_system"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability identified by its canonical
// "resource:action" name, globally unique.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Resource    Resource  `json:"resource"`
	Action      Action    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RolePermission links a role to a permission. Role permission sets are
// defined solely through these rows.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// RefreshToken is the persisted single-use marker for an issued refresh
// token, keyed by the token's jti claim. A consumed or revoked marker makes
// the token unusable even before its expiry.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

// Principal is the authenticated identity for a single request. It is
// reconstructed from token claims plus a live user lookup on every request
// and never persisted.
type Principal struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	RoleID         string `json:"role_id"`
	RoleName       string `json:"role_name"`
	IsSuperuser    bool   `json:"is_superuser"`
	TokenVersion   int64  `json:"-"`
}

// ResourceDescriptor describes a protected object for a single decision.
// It is derived by the persistence layer, never stored.
type ResourceDescriptor struct {
	Type           Resource `json:"resource_type"`
	ID             string   `json:"resource_id"`
	OrganizationID string   `json:"organization_id"`
	OwnerID        string   `json:"owner_id"`
	MemberIDs      []string `json:"member_ids,omitempty"`
	AdminIDs       []string `json:"admin_ids,omitempty"`
}

// Project is the concrete creator-owned resource managed through this API.
// Conversations, agent configs and documents follow the same descriptor
// contract via ResourceStore.Describe.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OwnerID        string    `json:"owner_id"`
	MemberIDs      []string  `json:"member_ids,omitempty"`
	AdminIDs       []string  `json:"admin_ids,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditEntry is one append-only record of an authorization or
// authentication event.
type AuditEntry struct {
	ID           string            `json:"id"`
	OccurredAt   time.Time         `json:"occurred_at"`
	ActorUserID  string            `json:"actor_user_id"`
	ActorOrgID   string            `json:"actor_org_id"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Result       string            `json:"result"`
	Reason       string            `json:"reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
}

// Descriptor converts a project into the descriptor consumed by AccessGuard.
func (p *Project) Descriptor() ResourceDescriptor {
	return ResourceDescriptor{
		Type:           ResourceProject,
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		OwnerID:        p.OwnerID,
		MemberIDs:      p.MemberIDs,
		AdminIDs:       p.AdminIDs,
	}
}
