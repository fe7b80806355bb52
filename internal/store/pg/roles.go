package pg

import (
	"context"
	"database/sql"
	"errors"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type roleStore struct{ db *sql.DB }

const roleColumns = `id, coalesce(organization_id, ''), name, description, is_system, created_at, updated_at`

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	var orgID any
	if role.OrganizationID != "" {
		orgID = role.OrganizationID
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, organization_id, name, description, is_system)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, role.ID, orgID, role.Name, role.Description, role.IsSystem)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id)
	return scanRole(row)
}

func (s *roleStore) FindSystem(ctx context.Context, name string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where organization_id is null and is_system and name = $1`, name)
	return scanRole(row)
}

func scanRole(row *sql.Row) (*auth.Role, error) {
	var role auth.Role
	if err := row.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description,
		&role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// List returns system-wide roles plus the roles of the scoped organization.
func (s *roleStore) List(ctx context.Context, scope auth.Scope) ([]*auth.Role, error) {
	query := `select ` + roleColumns + ` from roles`
	var args []any
	if orgID, ok := scope.OrganizationID(); ok {
		query += ` where organization_id is null or organization_id = $1`
		args = append(args, orgID)
	}
	query += ` order by created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description,
			&role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1 and not is_system`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or a protected system role; distinguish for the
		// caller.
		var isSystem bool
		err := s.db.QueryRowContext(ctx, `select is_system from roles where id = $1`, id).Scan(&isSystem)
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		if err != nil {
			return err
		}
		return auth.ErrSystemRole
	}
	return nil
}
