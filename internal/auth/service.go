package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service is the authentication facade: credential login, token refresh,
// bearer authentication into a Principal, and the revocation paths that
// bump token_version.
type Service struct {
	store  Store
	tokens *TokenService
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs the authentication service.
func NewService(store Store, tokens *TokenService, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, logger: logger, now: time.Now}, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// RegisterInput carries a self-service registration request.
type RegisterInput struct {
	OrganizationID string
	Email          string
	Username       string
	Password       string
}

// Register creates a new active user in the organization with the system
// member role and logs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, TokenPair, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.OrganizationID == "" || in.Email == "" || !strings.Contains(in.Email, "@") || in.Username == "" || in.Password == "" {
		return nil, TokenPair{}, ErrInvalidInput
	}

	org, err := s.store.Organizations(ctx).Find(ctx, in.OrganizationID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !org.Active {
		return nil, TokenPair{}, fmt.Errorf("%w: organization is inactive", ErrInvalidInput)
	}
	memberRole, err := s.store.Roles(ctx).FindSystem(ctx, RoleMember)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("member role lookup: %w", err)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}

	user := &User{
		OrganizationID: org.ID,
		Email:          in.Email,
		Username:       in.Username,
		PasswordHash:   hash,
		RoleID:         memberRole.ID,
		Active:         true,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login authenticates credentials and issues a fresh token pair. All
// credential failures collapse into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !user.Active {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token into a new pair. Any failure forces the
// client back to credential login; nothing is silently re-issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, _, err := s.tokens.Refresh(ctx, refreshToken)
	return pair, err
}

// Authenticate verifies a bearer access token and reconstructs the
// Principal from its claims plus a live user lookup. The live token_version
// comparison makes revocation immediate: a bump invalidates every
// previously issued token on its next verification, not at expiry.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Verify(accessToken, TokenAccess)
	if err != nil {
		return Principal{}, err
	}

	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrRevokedToken
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrRevokedToken
	}
	if user.TokenVersion != claims.TokenVersion {
		return Principal{}, ErrRevokedToken
	}

	principal := Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		RoleID:         user.RoleID,
		IsSuperuser:    user.IsSuperuser,
		TokenVersion:   user.TokenVersion,
	}
	if user.RoleID != "" {
		role, err := s.store.Roles(ctx).Find(ctx, user.RoleID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return Principal{}, err
			}
			// Dangling role reference: the principal keeps an empty role
			// name and resolves to no permissions downstream.
			s.logger.Warn("user references unknown role",
				zap.String("user_id", user.ID), zap.String("role_id", user.RoleID))
		} else {
			principal.RoleName = role.Name
		}
	}
	return principal, nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every outstanding token. The token_version bump happens as one
// atomic statement in the store, so concurrent changes can not lose a
// revocation.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if userID == "" || next == "" {
		return ErrInvalidInput
	}
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.store.RefreshTokens(ctx).RevokeByUser(ctx, userID)
}

// LogoutAll revokes every token the user holds by bumping token_version and
// retiring outstanding refresh markers.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidInput
	}
	if err := s.store.Users(ctx).BumpTokenVersion(ctx, userID); err != nil {
		return err
	}
	return s.store.RefreshTokens(ctx).RevokeByUser(ctx, userID)
}

// EnsureBuiltins makes sure the closed permission registry exists in the
// store, then validates there is no drift in either direction.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	if err := s.store.Permissions(ctx).Ensure(ctx, Registry()); err != nil {
		return err
	}
	return ValidateRegistry(ctx, s.store.Permissions(ctx))
}
