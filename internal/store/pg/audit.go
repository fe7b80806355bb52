package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, entry *auth.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	meta, _ := json.Marshal(entry.Metadata)
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, actor_user_id, actor_org_id, action,
			resource_type, resource_id, result, reason, metadata, request_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.OccurredAt, entry.ActorUserID, entry.ActorOrgID, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.Result, entry.Reason, meta, entry.RequestID)
	return err
}
