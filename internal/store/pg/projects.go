package pg

import (
	"context"
	"database/sql"
	"errors"

	"kastel.org/internal/auth"
	"kastel.org/internal/ids"
)

type projectStore struct{ db *sql.DB }

func (s *projectStore) Create(ctx context.Context, p *auth.Project) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into projects (id, organization_id, name, description, owner_id, active)
		values ($1, $2, $3, $4, $5, true)
		returning created_at, updated_at
	`, p.ID, p.OrganizationID, p.Name, p.Description, p.OwnerID)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	// The creator is always an admin member of their own project.
	if _, err := tx.ExecContext(ctx, `
		insert into project_members (project_id, user_id, is_admin)
		values ($1, $2, true)
	`, p.ID, p.OwnerID); err != nil {
		return mapWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.Active = true
	p.MemberIDs = []string{p.OwnerID}
	p.AdminIDs = []string{p.OwnerID}
	return nil
}

func (s *projectStore) Find(ctx context.Context, id string) (*auth.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, description, owner_id, active, created_at, updated_at
		from projects
		where id = $1 and active
	`, id)
	var p auth.Project
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description,
		&p.OwnerID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadMembers(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectStore) loadMembers(ctx context.Context, p *auth.Project) error {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, is_admin from project_members where project_id = $1
	`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.MemberIDs = nil
	p.AdminIDs = nil
	for rows.Next() {
		var (
			userID  string
			isAdmin bool
		)
		if err := rows.Scan(&userID, &isAdmin); err != nil {
			return err
		}
		p.MemberIDs = append(p.MemberIDs, userID)
		if isAdmin {
			p.AdminIDs = append(p.AdminIDs, userID)
		}
	}
	return rows.Err()
}

func (s *projectStore) List(ctx context.Context, scope auth.Scope) ([]*auth.Project, error) {
	query := `
		select id, organization_id, name, description, owner_id, active, created_at, updated_at
		from projects
		where active`
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

	var projects []*auth.Project
	for rows.Next() {
		var p auth.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description,
			&p.OwnerID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *projectStore) Update(ctx context.Context, p *auth.Project) error {
	res, err := s.db.ExecContext(ctx, `
		update projects
		set name = $2, description = $3, updated_at = now()
		where id = $1 and active
	`, p.ID, p.Name, p.Description)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete soft-deletes: the row stays for audit history but every lookup and
// listing excludes it.
func (s *projectStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update projects set active = false, updated_at = now() where id = $1 and active
	`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *projectStore) AddMember(ctx context.Context, projectID, userID string, admin bool) error {
	_, err := s.db.ExecContext(ctx, `
		insert into project_members (project_id, user_id, is_admin)
		values ($1, $2, $3)
		on conflict (project_id, user_id) do update set is_admin = excluded.is_admin
	`, projectID, userID, admin)
	return mapWriteError(err)
}

func (s *projectStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from project_members where project_id = $1 and user_id = $2
	`, projectID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
