// Package audit records every authentication and authorization event,
// mirrored to structured logs and an append-only persisted sink.
package audit

import (
	"context"

	"go.uber.org/zap"

	"kastel.org/internal/auth"
	"kastel.org/internal/obs"
)

// Sink persists audit entries. Implemented by the Postgres audit store.
type Sink interface {
	Append(ctx context.Context, entry *auth.AuditEntry) error
}

// Recorder implements auth.DecisionRecorder. Recording failures are logged
// and swallowed: an audit hiccup must never turn into a request failure or,
// worse, influence a decision.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

var _ auth.DecisionRecorder = (*Recorder)(nil)

// NewRecorder builds a recorder. sink may be nil, in which case events are
// only logged.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, logger: logger}
}

// RecordDecision receives one access guard decision, regardless of outcome.
func (r *Recorder) RecordDecision(ctx context.Context, ev auth.DecisionEvent) {
	result := ev.Decision.Result()
	reason := string(ev.Decision.Reason)
	obs.ObserveDecision(result, reason)

	r.logger.Info("authz_decision",
		zap.String("principal_id", ev.Principal.UserID),
		zap.String("organization_id", ev.Principal.OrganizationID),
		zap.String("action", string(ev.Action)),
		zap.String("resource_type", string(ev.Resource.Type)),
		zap.String("resource_id", ev.Resource.ID),
		zap.String("result", result),
		zap.String("reason", reason),
		zap.Time("occurred_at", ev.OccurredAt),
	)

	if r.sink == nil {
		return
	}
	entry := &auth.AuditEntry{
		OccurredAt:   ev.OccurredAt,
		ActorUserID:  ev.Principal.UserID,
		ActorOrgID:   ev.Principal.OrganizationID,
		Action:       string(ev.Action),
		ResourceType: string(ev.Resource.Type),
		ResourceID:   ev.Resource.ID,
		Result:       result,
		Reason:       reason,
		RequestID:    RequestIDFromContext(ctx),
	}
	if err := r.sink.Append(ctx, entry); err != nil {
		r.logger.Warn("audit append failed", zap.Error(err))
	}
}

// RecordEvent persists a non-decision security event (login, refresh,
// password change) with the same delivery guarantees.
func (r *Recorder) RecordEvent(ctx context.Context, entry *auth.AuditEntry) {
	r.logger.Info("audit_event",
		zap.String("action", entry.Action),
		zap.String("actor_user_id", entry.ActorUserID),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.String("result", entry.Result),
	)
	if r.sink == nil {
		return
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}
	if err := r.sink.Append(ctx, entry); err != nil {
		r.logger.Warn("audit append failed", zap.Error(err))
	}
}
