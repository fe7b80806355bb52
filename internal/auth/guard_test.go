package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kastel.org/internal/auth"
	"kastel.org/internal/auth/authtest"
)

type guardFixture struct {
	store *authtest.MemStore
	guard *auth.AccessGuard
	rec   *captureRecorder
}

type captureRecorder struct {
	mu     sync.Mutex
	events []auth.DecisionEvent
}

func (c *captureRecorder) RecordDecision(_ context.Context, ev auth.DecisionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureRecorder) last(t *testing.T) auth.DecisionEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.events)
	return c.events[len(c.events)-1]
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	store := authtest.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Permissions(ctx).Ensure(ctx, auth.Registry()))
	rec := &captureRecorder{}
	guard := auth.NewAccessGuard(
		auth.NewPermissionResolver(store.Permissions(ctx)),
		auth.NewOwnershipChecker(),
		rec,
		nil,
	)
	return &guardFixture{store: store, guard: guard, rec: rec}
}

// grantRole creates a role in org-a holding exactly the given permissions
// and returns its id.
func (f *guardFixture) grantRole(t *testing.T, name string, perms ...string) string {
	t.Helper()
	ctx := context.Background()
	role := &auth.Role{OrganizationID: "org-a", Name: name}
	require.NoError(t, f.store.Roles(ctx).Create(ctx, role))
	require.NoError(t, f.store.Permissions(ctx).SetForRole(ctx, role.ID, perms))
	return role.ID
}

func TestDecideSuperuserBypassesEverything(t *testing.T) {
	f := newGuardFixture(t)
	root := auth.Principal{UserID: "usr-root", OrganizationID: "org-a", IsSuperuser: true}

	// No role, foreign organization, ownership-sensitive action: still allowed.
	d := f.guard.Decide(context.Background(), root, auth.ActionDelete, auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-b",
		OwnerID:        "usr-other",
	})
	assert.True(t, d.Allowed)
	assert.Equal(t, auth.ReasonNone, d.Reason)
}

func TestDecideCrossOrgDeniedBeforePermissions(t *testing.T) {
	f := newGuardFixture(t)
	roleID := f.grantRole(t, "editor", auth.PermissionName(auth.ResourceProject, auth.ActionRead))
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a", RoleID: roleID}

	d := f.guard.Decide(context.Background(), p, auth.ActionRead, auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-b",
		OrganizationID: "org-b",
	})
	assert.False(t, d.Allowed)
	// Cross-org wins over insufficient permission so the denial carries no
	// hint about what exists in the other organization.
	assert.Equal(t, auth.ReasonCrossOrgAccess, d.Reason)
}

func TestDecideEmptyResourceOrgFailsClosed(t *testing.T) {
	f := newGuardFixture(t)
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a"}

	d := f.guard.Decide(context.Background(), p, auth.ActionRead, auth.ResourceDescriptor{
		Type: auth.ResourceProject,
		ID:   "prj-1",
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonCrossOrgAccess, d.Reason)
}

func TestDecidePermissionRequired(t *testing.T) {
	f := newGuardFixture(t)
	readOnly := f.grantRole(t, "reader", auth.PermissionName(auth.ResourceProject, auth.ActionRead))
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a", RoleID: readOnly}
	desc := auth.ResourceDescriptor{Type: auth.ResourceProject, ID: "prj-1", OrganizationID: "org-a", OwnerID: "usr-1"}

	assert.True(t, f.guard.Decide(context.Background(), p, auth.ActionRead, desc).Allowed)

	d := f.guard.Decide(context.Background(), p, auth.ActionDelete, desc)
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonInsufficientPermission, d.Reason)
}

func TestDecideNoRoleResolvesToNoPermissions(t *testing.T) {
	f := newGuardFixture(t)
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a"}

	d := f.guard.Decide(context.Background(), p, auth.ActionRead, auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-a",
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonInsufficientPermission, d.Reason)
}

func TestDecideOwnershipBoundary(t *testing.T) {
	f := newGuardFixture(t)
	editor := f.grantRole(t, "editor",
		auth.PermissionName(auth.ResourceProject, auth.ActionUpdate),
		auth.PermissionName(auth.ResourceProject, auth.ActionDelete),
	)
	desc := auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-a",
		OwnerID:        "usr-owner",
		MemberIDs:      []string{"usr-member"},
	}

	owner := auth.Principal{UserID: "usr-owner", OrganizationID: "org-a", RoleID: editor}
	assert.True(t, f.guard.Decide(context.Background(), owner, auth.ActionUpdate, desc).Allowed)

	// Same role and permission, but not the creator: the ownership branch
	// denies even though the permission check passed.
	member := auth.Principal{UserID: "usr-member", OrganizationID: "org-a", RoleID: editor}
	d := f.guard.Decide(context.Background(), member, auth.ActionDelete, desc)
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonNotOwner, d.Reason)

	// Membership still suffices for reads.
	readRole := f.grantRole(t, "reader", auth.PermissionName(auth.ResourceProject, auth.ActionRead))
	reader := auth.Principal{UserID: "usr-member", OrganizationID: "org-a", RoleID: readRole}
	assert.True(t, f.guard.Decide(context.Background(), reader, auth.ActionRead, desc).Allowed)
}

func TestDecideOrgAdminElevatesPastOwnership(t *testing.T) {
	f := newGuardFixture(t)
	adminRole := f.grantRole(t, auth.RoleAdmin, auth.PermissionName(auth.ResourceProject, auth.ActionDelete))
	desc := auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-a",
		OwnerID:        "usr-owner",
	}

	admin := auth.Principal{UserID: "usr-admin", OrganizationID: "org-a", RoleID: adminRole, RoleName: auth.RoleAdmin}
	assert.True(t, f.guard.Decide(context.Background(), admin, auth.ActionDelete, desc).Allowed)

	// The same admin in a foreign organization is still walled out.
	foreign := desc
	foreign.OrganizationID = "org-b"
	d := f.guard.Decide(context.Background(), admin, auth.ActionDelete, foreign)
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonCrossOrgAccess, d.Reason)
}

func TestDecideAdminMembershipElevates(t *testing.T) {
	f := newGuardFixture(t)
	editor := f.grantRole(t, "editor", auth.PermissionName(auth.ResourceProject, auth.ActionUpdate))
	desc := auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-a",
		OwnerID:        "usr-owner",
		MemberIDs:      []string{"usr-padmin"},
		AdminIDs:       []string{"usr-padmin"},
	}

	p := auth.Principal{UserID: "usr-padmin", OrganizationID: "org-a", RoleID: editor}
	assert.True(t, f.guard.Decide(context.Background(), p, auth.ActionUpdate, desc).Allowed)
}

func TestDecidePermissionEditTakesEffectImmediately(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	roleID := f.grantRole(t, "editor", auth.PermissionName(auth.ResourceProject, auth.ActionUpdate))
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a", RoleID: roleID}
	desc := auth.ResourceDescriptor{Type: auth.ResourceProject, ID: "prj-1", OrganizationID: "org-a", OwnerID: "usr-1"}

	require.True(t, f.guard.Decide(ctx, p, auth.ActionUpdate, desc).Allowed)

	// Revoke the permission; the very next decision must deny, no cache
	// window in between.
	require.NoError(t, f.store.Permissions(ctx).SetForRole(ctx, roleID, nil))
	d := f.guard.Decide(ctx, p, auth.ActionUpdate, desc)
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonInsufficientPermission, d.Reason)
}

type failingPermissionStore struct {
	auth.PermissionStore
}

func (failingPermissionStore) PermissionsForRole(context.Context, string) ([]auth.Permission, error) {
	return nil, errors.New("connection reset")
}

func TestDecideResolverFailureFailsClosed(t *testing.T) {
	rec := &captureRecorder{}
	guard := auth.NewAccessGuard(
		auth.NewPermissionResolver(failingPermissionStore{}),
		auth.NewOwnershipChecker(),
		rec,
		nil,
	)
	p := auth.Principal{UserID: "usr-1", OrganizationID: "org-a", RoleID: "rol-1"}

	d := guard.Decide(context.Background(), p, auth.ActionRead, auth.ResourceDescriptor{
		Type:           auth.ResourceProject,
		ID:             "prj-1",
		OrganizationID: "org-a",
	})
	assert.False(t, d.Allowed)
	assert.Equal(t, auth.ReasonInsufficientPermission, d.Reason)
}

func TestDecideRecordsEveryOutcome(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	desc := auth.ResourceDescriptor{Type: auth.ResourceProject, ID: "prj-1", OrganizationID: "org-a"}

	root := auth.Principal{UserID: "usr-root", IsSuperuser: true}
	f.guard.Decide(ctx, root, auth.ActionRead, desc)
	ev := f.rec.last(t)
	assert.Equal(t, "allow", ev.Decision.Result())
	assert.Equal(t, "usr-root", ev.Principal.UserID)
	assert.False(t, ev.OccurredAt.IsZero())

	nobody := auth.Principal{UserID: "usr-2", OrganizationID: "org-b"}
	f.guard.Decide(ctx, nobody, auth.ActionRead, desc)
	ev = f.rec.last(t)
	assert.Equal(t, "deny", ev.Decision.Result())
	assert.Equal(t, auth.ReasonCrossOrgAccess, ev.Decision.Reason)

	assert.Equal(t, 2, f.rec.count())
}
