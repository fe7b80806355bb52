package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DenyReason classifies why a decision denied access. The HTTP layer maps
// ReasonCrossOrgAccess to 404 so a foreign tenant's resources are
// indistinguishable from nonexistent ones; the rest map to 403.
type DenyReason string

const (
	ReasonNone                   DenyReason = ""
	ReasonCrossOrgAccess         DenyReason = "cross_org_access"
	ReasonInsufficientPermission DenyReason = "insufficient_permission"
	ReasonNotOwner               DenyReason = "not_owner"
)

// Decision is the typed outcome of AccessGuard.Decide. The guard never
// raises errors across its boundary; evaluation failures fail closed into a
// denial.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the affirmative decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a denial carrying its reason.
func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Result renders the decision outcome for audit records.
func (d Decision) Result() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

// DecisionEvent is emitted for every decision, regardless of outcome.
type DecisionEvent struct {
	Principal  Principal
	Action     Action
	Resource   ResourceDescriptor
	Decision   Decision
	OccurredAt time.Time
}

// DecisionRecorder receives every decision event. Implemented by
// internal/audit; recording must never influence the decision itself.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, ev DecisionEvent)
}

// AccessGuard is the single composed decision point every protected handler
// calls before mutating or filtering anything. Evaluating a decision never
// mutates engine state.
type AccessGuard struct {
	resolver  *PermissionResolver
	ownership *OwnershipChecker
	recorder  DecisionRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccessGuard composes the guard from its collaborators. recorder may be
// nil in tests.
func NewAccessGuard(resolver *PermissionResolver, ownership *OwnershipChecker, recorder DecisionRecorder, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{
		resolver:  resolver,
		ownership: ownership,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Decide evaluates whether principal may perform action on resource.
//
// The step order is load-bearing and must not change:
//
//  1. superuser bypass, terminal;
//  2. tenant boundary, checked before permissions so a denial never
//     reveals whether the resource exists in another organization;
//  3. role permission via fresh resolution;
//  4. ownership for ownership-sensitive actions, with org-admin and admin-
//     membership elevation;
//  5. allow.
//
// Explicit deny always wins; there is no implicit-allow fallback.
func (g *AccessGuard) Decide(ctx context.Context, principal Principal, action Action, resource ResourceDescriptor) Decision {
	decision := g.evaluate(ctx, principal, action, resource)
	g.record(ctx, principal, action, resource, decision)
	return decision
}

func (g *AccessGuard) evaluate(ctx context.Context, principal Principal, action Action, resource ResourceDescriptor) Decision {
	if principal.IsSuperuser {
		return Allow()
	}

	if resource.OrganizationID == "" || resource.OrganizationID != principal.OrganizationID {
		return Deny(ReasonCrossOrgAccess)
	}

	required := PermissionName(resource.Type, action)
	perms, err := g.resolver.Resolve(ctx, principal.RoleID)
	if err != nil {
		// Data-integrity failure: fail closed, never open.
		g.logger.Warn("permission resolution failed, denying",
			zap.String("user_id", principal.UserID),
			zap.String("role_id", principal.RoleID),
			zap.String("permission", required),
			zap.Error(err))
		return Deny(ReasonInsufficientPermission)
	}
	if !perms.Has(required) {
		return Deny(ReasonInsufficientPermission)
	}

	if OwnershipSensitive(resource.Type, action) {
		switch {
		case g.ownership.IsOwner(principal.UserID, resource):
		case principal.RoleName == RoleAdmin:
		case g.ownership.IsAdminMember(principal.UserID, resource):
		default:
			return Deny(ReasonNotOwner)
		}
	}

	return Allow()
}

func (g *AccessGuard) record(ctx context.Context, principal Principal, action Action, resource ResourceDescriptor, decision Decision) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordDecision(ctx, DecisionEvent{
		Principal:  principal,
		Action:     action,
		Resource:   resource,
		Decision:   decision,
		OccurredAt: g.now().UTC(),
	})
}
