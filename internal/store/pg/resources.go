package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kastel.org/internal/auth"
)

type resourceStore struct{ db *sql.DB }

// Describe builds the descriptor AccessGuard consumes. Inactive rows come
// back as ErrNotFound so soft-deleted resources behave exactly like missing
// ones on every path.
func (s *resourceStore) Describe(ctx context.Context, resource auth.Resource, id string) (auth.ResourceDescriptor, error) {
	switch resource {
	case auth.ResourceProject:
		return s.describeProject(ctx, id)
	case auth.ResourceConversation:
		return s.describeOwned(ctx, resource, "conversations", id)
	case auth.ResourceAgentConfig:
		return s.describeOwned(ctx, resource, "agent_configs", id)
	case auth.ResourceDocument:
		return s.describeOwned(ctx, resource, "documents", id)
	case auth.ResourceUser:
		return s.describeUser(ctx, id)
	case auth.ResourceOrganization:
		return s.describeOrganization(ctx, id)
	default:
		return auth.ResourceDescriptor{}, fmt.Errorf("%w: resource type %q", auth.ErrInvalidInput, resource)
	}
}

func (s *resourceStore) describeProject(ctx context.Context, id string) (auth.ResourceDescriptor, error) {
	p, err := (&projectStore{db: s.db}).Find(ctx, id)
	if err != nil {
		return auth.ResourceDescriptor{}, err
	}
	return p.Descriptor(), nil
}

// describeOwned covers conversations, agent configs and documents: each
// carries an organization, an owner and an active flag, with no membership
// of its own.
func (s *resourceStore) describeOwned(ctx context.Context, resource auth.Resource, table, id string) (auth.ResourceDescriptor, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, organization_id, owner_id
		from `+table+`
		where id = $1 and active
	`, id)
	desc := auth.ResourceDescriptor{Type: resource}
	if err := row.Scan(&desc.ID, &desc.OrganizationID, &desc.OwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ResourceDescriptor{}, auth.ErrNotFound
		}
		return auth.ResourceDescriptor{}, err
	}
	return desc, nil
}

func (s *resourceStore) describeUser(ctx context.Context, id string) (auth.ResourceDescriptor, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, organization_id from users where id = $1 and active
	`, id)
	desc := auth.ResourceDescriptor{Type: auth.ResourceUser}
	if err := row.Scan(&desc.ID, &desc.OrganizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ResourceDescriptor{}, auth.ErrNotFound
		}
		return auth.ResourceDescriptor{}, err
	}
	// A user record is its own owner for profile-level operations.
	desc.OwnerID = desc.ID
	return desc, nil
}

func (s *resourceStore) describeOrganization(ctx context.Context, id string) (auth.ResourceDescriptor, error) {
	row := s.db.QueryRowContext(ctx, `
		select id from organizations where id = $1 and active
	`, id)
	desc := auth.ResourceDescriptor{Type: auth.ResourceOrganization}
	if err := row.Scan(&desc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ResourceDescriptor{}, auth.ErrNotFound
		}
		return auth.ResourceDescriptor{}, err
	}
	// The organization is its own tenant boundary.
	desc.OrganizationID = desc.ID
	return desc, nil
}
