// Package pg implements auth.Store on PostgreSQL through the pgx stdlib
// driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kastel.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements auth.Store.
type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool settings tuned for the API's
// read-mostly decision workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle, used by tests with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Organizations(context.Context) auth.OrganizationStore { return &orgStore{db: s.db} }
func (s *Store) Users(context.Context) auth.UserStore                 { return &userStore{db: s.db} }
func (s *Store) Roles(context.Context) auth.RoleStore                 { return &roleStore{db: s.db} }
func (s *Store) Permissions(context.Context) auth.PermissionStore {
	return &permissionStore{db: s.db}
}
func (s *Store) RefreshTokens(context.Context) auth.RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}
func (s *Store) Projects(context.Context) auth.ProjectStore   { return &projectStore{db: s.db} }
func (s *Store) Resources(context.Context) auth.ResourceStore { return &resourceStore{db: s.db} }
func (s *Store) Audit(context.Context) auth.AuditStore        { return &auditStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func mapWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrAlreadyExists
		case pgErrForeignKeyViolation:
			return auth.ErrInvalidInput
		}
	}
	return err
}
