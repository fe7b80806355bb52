// Package authtest provides an in-memory auth.Store for tests.
package authtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kastel.org/internal/auth"
)

// MemStore implements auth.Store in memory. Refresh marker consumption runs
// under the same mutex as everything else, so concurrency tests exercise
// real contention.
type MemStore struct {
	mu       sync.Mutex
	orgs     map[string]*auth.Organization
	users    map[string]*auth.User
	roles    map[string]*auth.Role
	perms    map[string]auth.Permission
	rolePerm map[string]map[string]bool
	refresh  map[string]*auth.RefreshToken
	projects map[string]*auth.Project
	audit    []*auth.AuditEntry

	seq int
}

// NewStore returns an empty store.
func NewStore() *MemStore {
	return &MemStore{
		orgs:     make(map[string]*auth.Organization),
		users:    make(map[string]*auth.User),
		roles:    make(map[string]*auth.Role),
		perms:    make(map[string]auth.Permission),
		rolePerm: make(map[string]map[string]bool),
		refresh:  make(map[string]*auth.RefreshToken),
		projects: make(map[string]*auth.Project),
	}
}

var _ auth.Store = (*MemStore)(nil)

func (m *MemStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *MemStore) Organizations(context.Context) auth.OrganizationStore { return (*memOrgs)(m) }
func (m *MemStore) Users(context.Context) auth.UserStore                 { return (*memUsers)(m) }
func (m *MemStore) Roles(context.Context) auth.RoleStore                 { return (*memRoles)(m) }
func (m *MemStore) Permissions(context.Context) auth.PermissionStore     { return (*memPerms)(m) }
func (m *MemStore) RefreshTokens(context.Context) auth.RefreshTokenStore { return (*memRefresh)(m) }
func (m *MemStore) Projects(context.Context) auth.ProjectStore           { return (*memProjects)(m) }
func (m *MemStore) Resources(context.Context) auth.ResourceStore         { return (*memResources)(m) }
func (m *MemStore) Audit(context.Context) auth.AuditStore                { return (*memAudit)(m) }

// SetUserActive flips a user's active flag directly, bypassing the API.
func (m *MemStore) SetUserActive(userID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Active = active
	}
}

// SetUserRoleID rewrites a user's role reference, including to ids that no
// longer resolve.
func (m *MemStore) SetUserRoleID(userID, roleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.RoleID = roleID
	}
}

// SetUserSuperuser flips the platform operator flag.
func (m *MemStore) SetUserSuperuser(userID string, super bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.IsSuperuser = super
	}
}

// PutRawPermission injects a permission row outside the compiled registry,
// for drift tests.
func (m *MemStore) PutRawPermission(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[name] = auth.Permission{ID: m.nextID("prm"), Name: name}
}

// AuditEntries returns a copy of everything appended so far.
func (m *MemStore) AuditEntries() []*auth.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*auth.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

type memOrgs MemStore

func (m *memOrgs) Create(_ context.Context, org *auth.Organization) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == "" {
		org.ID = s.nextID("org")
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (m *memOrgs) Find(_ context.Context, id string) (*auth.Organization, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok || !org.Active {
		return nil, auth.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *memOrgs) List(_ context.Context, scope auth.Scope) ([]*auth.Organization, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.Organization
	for _, org := range s.orgs {
		if org.Active && scope.Matches(org.ID) {
			cp := *org
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memUsers MemStore

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = s.nextID("usr")
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) List(_ context.Context, scope auth.Scope) ([]*auth.User, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.User
	for _, u := range s.users {
		if scope.Matches(u.OrganizationID) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	u.TokenVersion++
	return nil
}

func (m *memUsers) UpdateRole(_ context.Context, userID, roleID string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || !u.Active {
		return auth.ErrNotFound
	}
	u.RoleID = roleID
	return nil
}

func (m *memUsers) BumpTokenVersion(_ context.Context, userID string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.TokenVersion++
	return nil
}

type memRoles MemStore

func (m *memRoles) Create(_ context.Context, role *auth.Role) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = s.nextID("rol")
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*auth.Role, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoles) FindSystem(_ context.Context, name string) (*auth.Role, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.IsSystem && role.OrganizationID == "" && role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memRoles) List(_ context.Context, scope auth.Scope) ([]*auth.Role, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.Role
	for _, role := range s.roles {
		if role.OrganizationID == "" || scope.Matches(role.OrganizationID) {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return auth.ErrNotFound
	}
	if role.IsSystem {
		return auth.ErrSystemRole
	}
	delete(s.roles, id)
	delete(s.rolePerm, id)
	return nil
}

type memPerms MemStore

func (m *memPerms) Ensure(_ context.Context, perms []auth.Permission) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if _, ok := s.perms[p.Name]; !ok {
			if p.ID == "" {
				p.ID = s.nextID("prm")
			}
			s.perms[p.Name] = p
		}
	}
	return nil
}

func (m *memPerms) List(_ context.Context) ([]auth.Permission, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPerms) SetForRole(_ context.Context, roleID string, names []string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok {
		return auth.ErrNotFound
	}
	if role.IsSystem {
		return auth.ErrSystemRole
	}
	return s.grantLocked(roleID, names, true)
}

func (m *memPerms) EnsureForRole(_ context.Context, roleID string, names []string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	return s.grantLocked(roleID, names, false)
}

func (s *MemStore) grantLocked(roleID string, names []string, replace bool) error {
	set := s.rolePerm[roleID]
	if set == nil || replace {
		set = make(map[string]bool)
	}
	for _, name := range names {
		if _, ok := s.perms[name]; !ok {
			return auth.ErrInvalidInput
		}
		set[name] = true
	}
	s.rolePerm[roleID] = set
	return nil
}

func (m *memPerms) PermissionsForRole(_ context.Context, roleID string) ([]auth.Permission, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.Permission
	for name := range s.rolePerm[roleID] {
		out = append(out, s.perms[name])
	}
	return out, nil
}

type memRefresh MemStore

func (m *memRefresh) Create(_ context.Context, tok *auth.RefreshToken) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.refresh[tok.ID] = &cp
	return nil
}

func (m *memRefresh) Consume(_ context.Context, id string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.refresh[id]
	if !ok {
		return auth.ErrNotFound
	}
	if tok.UsedAt != nil || tok.Revoked || !tok.ExpiresAt.After(time.Now()) {
		return auth.ErrRevokedToken
	}
	now := time.Now()
	tok.UsedAt = &now
	return nil
}

func (m *memRefresh) RevokeByUser(_ context.Context, userID string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

type memProjects MemStore

func (m *memProjects) Create(_ context.Context, p *auth.Project) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.nextID("prj")
	}
	if p.OwnerID != "" {
		if !contains(p.AdminIDs, p.OwnerID) {
			p.AdminIDs = append(p.AdminIDs, p.OwnerID)
		}
		if !contains(p.MemberIDs, p.OwnerID) {
			p.MemberIDs = append(p.MemberIDs, p.OwnerID)
		}
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Find(_ context.Context, id string) (*auth.Project, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || !p.Active {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) List(_ context.Context, scope auth.Scope) ([]*auth.Project, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.Project
	for _, p := range s.projects {
		if p.Active && scope.Matches(p.OrganizationID) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *auth.Project) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[p.ID]
	if !ok || !existing.Active {
		return auth.ErrNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	return nil
}

func (m *memProjects) Delete(_ context.Context, id string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || !p.Active {
		return auth.ErrNotFound
	}
	p.Active = false
	return nil
}

func (m *memProjects) AddMember(_ context.Context, projectID, userID string, admin bool) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || !p.Active {
		return auth.ErrNotFound
	}
	if !contains(p.MemberIDs, userID) {
		p.MemberIDs = append(p.MemberIDs, userID)
	}
	if admin && !contains(p.AdminIDs, userID) {
		p.AdminIDs = append(p.AdminIDs, userID)
	}
	return nil
}

func (m *memProjects) RemoveMember(_ context.Context, projectID, userID string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || !p.Active {
		return auth.ErrNotFound
	}
	p.MemberIDs = remove(p.MemberIDs, userID)
	p.AdminIDs = remove(p.AdminIDs, userID)
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type memResources MemStore

func (m *memResources) Describe(ctx context.Context, resource auth.Resource, id string) (auth.ResourceDescriptor, error) {
	s := (*MemStore)(m)
	switch resource {
	case auth.ResourceProject:
		p, err := (*memProjects)(s).Find(ctx, id)
		if err != nil {
			return auth.ResourceDescriptor{}, err
		}
		return p.Descriptor(), nil
	case auth.ResourceUser:
		u, err := (*memUsers)(s).Find(ctx, id)
		if err != nil {
			return auth.ResourceDescriptor{}, err
		}
		return auth.ResourceDescriptor{Type: auth.ResourceUser, ID: u.ID, OrganizationID: u.OrganizationID, OwnerID: u.ID}, nil
	case auth.ResourceOrganization:
		org, err := (*memOrgs)(s).Find(ctx, id)
		if err != nil {
			return auth.ResourceDescriptor{}, err
		}
		return auth.ResourceDescriptor{Type: auth.ResourceOrganization, ID: org.ID, OrganizationID: org.ID}, nil
	default:
		return auth.ResourceDescriptor{}, auth.ErrNotFound
	}
}

type memAudit MemStore

func (m *memAudit) Append(_ context.Context, entry *auth.AuditEntry) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}
