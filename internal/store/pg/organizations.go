package pg

import (
	"context"
	"database/sql"
	"errors"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type orgStore struct{ db *sql.DB }

func (s *orgStore) Create(ctx context.Context, org *auth.Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, active)
		values ($1, $2, true)
		returning created_at, updated_at
	`, org.ID, org.Name)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	org.Active = true
	return nil
}

func (s *orgStore) Find(ctx context.Context, id string) (*auth.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, active, created_at, updated_at
		from organizations
		where id = $1 and active
	`, id)
	var org auth.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) List(ctx context.Context, scope auth.Scope) ([]*auth.Organization, error) {
	query := `
		select id, name, active, created_at, updated_at
		from organizations
		where active`
	var args []any
	if orgID, ok := scope.OrganizationID(); ok {
		query += ` and id = $1`
		args = append(args, orgID)
	}
	query += ` order by created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.Organization
	for rows.Next() {
		var org auth.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &org)
	}
	return res, rows.Err()
}
