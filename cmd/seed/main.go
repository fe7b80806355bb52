// Command seed provisions the permission registry, the system roles and an
// optional bootstrap organization with a superuser account. It is idempotent
// and safe to run on every deploy.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"kastel.org/internal/auth"
	"kastel.org/internal/config"
	"kastel.org/internal/ids"
	"kastel.org/internal/store/pg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seed(ctx, store); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("seed complete")
}

func seed(ctx context.Context, store auth.Store) error {
	perms := store.Permissions(ctx)
	if err := perms.Ensure(ctx, auth.Registry()); err != nil {
		return err
	}
	if err := auth.ValidateRegistry(ctx, perms); err != nil {
		return err
	}

	roles := store.Roles(ctx)
	for _, name := range []string{auth.RoleAdmin, auth.RoleMember, auth.RoleViewer} {
		role, err := roles.FindSystem(ctx, name)
		if errors.Is(err, auth.ErrNotFound) {
			// System role ids are anchored at the epoch so they sort ahead
			// of every organically created row.
			role = &auth.Role{ID: ids.NewAt(time.Unix(0, 0)), Name: name, IsSystem: true}
			if err := roles.Create(ctx, role); err != nil {
				return err
			}
			log.Printf("created system role %q", name)
		} else if err != nil {
			return err
		}
		if err := perms.EnsureForRole(ctx, role.ID, auth.SystemRolePermissions(name)); err != nil {
			return err
		}
	}

	return bootstrapSuperuser(ctx, store)
}

// bootstrapSuperuser creates the first organization and superuser when
// KASTEL_BOOTSTRAP_EMAIL and KASTEL_BOOTSTRAP_PASSWORD are set and the
// account does not already exist.
func bootstrapSuperuser(ctx context.Context, store auth.Store) error {
	email := os.Getenv("KASTEL_BOOTSTRAP_EMAIL")
	password := os.Getenv("KASTEL_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	users := store.Users(ctx)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrNotFound) {
		return err
	}

	orgName := os.Getenv("KASTEL_BOOTSTRAP_ORG")
	if orgName == "" {
		orgName = "platform"
	}
	org := &auth.Organization{Name: orgName, Active: true}
	if err := store.Organizations(ctx).Create(ctx, org); err != nil {
		return err
	}

	adminRole, err := store.Roles(ctx).FindSystem(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &auth.User{
		OrganizationID: org.ID,
		Email:          email,
		Username:       "root",
		PasswordHash:   hash,
		RoleID:         adminRole.ID,
		IsSuperuser:    true,
		Active:         true,
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}
	log.Printf("created superuser %s in organization %s", email, org.ID)
	return nil
}
