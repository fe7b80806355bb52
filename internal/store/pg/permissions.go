package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, resource, action, description)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing
		`, p.ID, p.Name, string(p.Resource), string(p.Action), p.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, resource, action, description, created_at
		from permissions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// SetForRole replaces the role's permission set and bumps its
// permission_version inside one transaction, so readers either see the old
// complete set or the new complete set.
func (s *permissionStore) SetForRole(ctx context.Context, roleID string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var isSystem bool
	err = tx.QueryRowContext(ctx, `select is_system from roles where id = $1 for update`, roleID).Scan(&isSystem)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	if isSystem {
		return auth.ErrSystemRole
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range names {
		res, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
		`, roleID, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown permission %q", auth.ErrInvalidInput, name)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		update roles set permission_version = permission_version + 1, updated_at = now() where id = $1
	`, roleID); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureForRole grants the named permissions to the role without touching
// existing grants. This is the seeding path for system roles, whose sets
// SetForRole refuses to replace.
func (s *permissionStore) EnsureForRole(ctx context.Context, roleID string, names []string) error {
	for _, name := range names {
		res, err := s.db.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
			on conflict do nothing
		`, roleID, name)
		if err != nil {
			return err
		}
		if _, err := res.RowsAffected(); err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) PermissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.resource, p.action, p.description, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	var perms []auth.Permission
	for rows.Next() {
		var (
			p        auth.Permission
			resource string
			action   string
		)
		if err := rows.Scan(&p.ID, &p.Name, &resource, &action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Resource = auth.Resource(resource)
		p.Action = auth.Action(action)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
