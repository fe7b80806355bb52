package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access from refresh credentials.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the complete claim set carried by every token. Roles and
// permissions are deliberately absent: they are resolved from live state on
// each request, so role edits take effect without waiting for expiry.
type Claims struct {
	OrganizationID string    `json:"org"`
	TokenType      TokenType `json:"token_type"`
	TokenVersion   int64     `json:"token_version"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService issues, verifies and rotates access/refresh token pairs.
// Signing is HS256; verification is pure computation with no I/O.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      UserStore
	refresh    RefreshTokenStore
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService. The secret must be non-empty;
// users and refresh back the live lookups rotation depends on.
func NewTokenService(secret string, users UserStore, refresh RefreshTokenStore, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	svc := &TokenService{
		secret:     []byte(secret),
		issuer:     "kastel",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		users:      users,
		refresh:    refresh,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssueAccessToken signs a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(user *User) (string, time.Time, error) {
	return s.sign(user, TokenAccess, s.accessTTL, uuid.NewString())
}

// IssueRefreshToken signs a refresh token and persists its single-use
// marker. The marker row, keyed by jti, is what makes rotation single-use.
func (s *TokenService) IssueRefreshToken(ctx context.Context, user *User) (string, time.Time, error) {
	jti := uuid.NewString()
	token, expiresAt, err := s.sign(user, TokenRefresh, s.refreshTTL, jti)
	if err != nil {
		return "", time.Time{}, err
	}
	rec := &RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return "", time.Time{}, fmt.Errorf("persist refresh marker: %w", err)
	}
	return token, expiresAt, nil
}

// IssuePair issues a fresh access+refresh pair for the user.
func (s *TokenService) IssuePair(ctx context.Context, user *User) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify decodes the token, validates signature, expiry and type.
// The expiry boundary is exclusive: a token inspected exactly at exp is
// already expired. Failures map onto the authentication error taxonomy.
func (s *TokenService) Verify(token string, want TokenType) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	// Claim validation is done by hand below against the injected clock;
	// the library only checks structure and signature here.
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.OrganizationID == "" {
		return nil, ErrMalformedToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrMalformedToken
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Refresh rotates a refresh token: verifies it, consumes its single-use
// marker, re-checks the user's live token_version, and issues a new pair.
// A replayed token fails with ErrRevokedToken even before its expiry.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, err := s.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, nil, err
	}

	// Marker consumption is the atomic single-use gate: under concurrent
	// replays of the same token exactly one caller passes this line.
	if err := s.refresh.Consume(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRevokedToken) {
			return TokenPair{}, nil, ErrRevokedToken
		}
		return TokenPair{}, nil, err
	}

	user, err := s.users.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrRevokedToken
		}
		return TokenPair{}, nil, err
	}
	if !user.Active {
		return TokenPair{}, nil, ErrRevokedToken
	}
	if user.TokenVersion != claims.TokenVersion {
		return TokenPair{}, nil, ErrRevokedToken
	}

	pair, err := s.IssuePair(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *TokenService) sign(user *User, typ TokenType, ttl time.Duration, jti string) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		OrganizationID: user.OrganizationID,
		TokenType:      typ,
		TokenVersion:   user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
