package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kastel.org/internal/auth"
)

func TestOwnershipChecker(t *testing.T) {
	c := auth.NewOwnershipChecker()
	desc := auth.ResourceDescriptor{
		Type:      auth.ResourceProject,
		ID:        "prj-1",
		OwnerID:   "usr-owner",
		MemberIDs: []string{"usr-member"},
		AdminIDs:  []string{"usr-padmin"},
	}

	assert.True(t, c.IsOwner("usr-owner", desc))
	assert.False(t, c.IsOwner("usr-member", desc))
	assert.False(t, c.IsOwner("", auth.ResourceDescriptor{}))

	// The owner is implicitly a member.
	assert.True(t, c.IsMember("usr-owner", desc))
	assert.True(t, c.IsMember("usr-member", desc))
	assert.False(t, c.IsMember("usr-stranger", desc))

	assert.True(t, c.IsAdminMember("usr-padmin", desc))
	assert.False(t, c.IsAdminMember("usr-owner", desc))
	assert.False(t, c.IsAdminMember("usr-member", desc))
}
