package auth

// OwnershipChecker resolves creator and membership relationships for checks
// finer-grained than role permissions alone.
type OwnershipChecker struct{}

// NewOwnershipChecker constructs a checker.
func NewOwnershipChecker() *OwnershipChecker { return &OwnershipChecker{} }

// IsOwner reports whether the user created the resource.
func (c *OwnershipChecker) IsOwner(userID string, res ResourceDescriptor) bool {
	return userID != "" && res.OwnerID == userID
}

// IsMember reports whether the user is in the resource's membership set.
// Membership grants read-level access only; it never satisfies the
// ownership-sensitive branch of the decision algorithm.
func (c *OwnershipChecker) IsMember(userID string, res ResourceDescriptor) bool {
	if userID == "" {
		return false
	}
	if res.OwnerID == userID {
		return true
	}
	for _, id := range res.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdminMember reports whether the user holds the elevating admin
// membership on the resource, which does satisfy ownership-sensitive
// actions.
func (c *OwnershipChecker) IsAdminMember(userID string, res ResourceDescriptor) bool {
	if userID == "" {
		return false
	}
	for _, id := range res.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
