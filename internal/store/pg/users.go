package pg

import (
	"context"
	"database/sql"
	"errors"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type userStore struct{ db *sql.DB }

const userColumns = `id, organization_id, email, username, password_hash, role_id,
	is_superuser, active, token_version, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, organization_id, email, username, password_hash, role_id, is_superuser, active)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning token_version, created_at, updated_at
	`, u.ID, u.OrganizationID, u.Email, u.Username, u.PasswordHash, u.RoleID, u.IsSuperuser, u.Active)
	if err := row.Scan(&u.TokenVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.findWhere(ctx, `id = $1`, id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findWhere(ctx, `email = $1`, email)
}

func (s *userStore) findWhere(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where `+where, arg)
	var u auth.User
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Username, &u.PasswordHash,
		&u.RoleID, &u.IsSuperuser, &u.Active, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) List(ctx context.Context, scope auth.Scope) ([]*auth.User, error) {
	query := `select ` + userColumns + ` from users where active`
	var args []any
	if orgID, ok := scope.OrganizationID(); ok {
		query += ` and organization_id = $1`
		args = append(args, orgID)
	}
	query += ` order by created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Username, &u.PasswordHash,
			&u.RoleID, &u.IsSuperuser, &u.Active, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdatePassword swaps the hash and bumps token_version in a single
// statement, so concurrent password changes each produce a distinct
// version and no revocation is lost to a stale read.
func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set password_hash = $2,
		    token_version = token_version + 1,
		    updated_at = now()
		where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateRole swaps the user's role. No token_version bump is needed: the
// principal's role is re-read from live state on every request, so the new
// role is effective immediately.
func (s *userStore) UpdateRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set role_id = $2,
		    updated_at = now()
		where id = $1 and active
	`, userID, roleID)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *userStore) BumpTokenVersion(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set token_version = token_version + 1,
		    updated_at = now()
		where id = $1
	`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
