package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kastel.org/internal/auth"
	"kastel.org/internal/auth/authtest"
)

func newTestTokenService(t *testing.T, store *authtest.MemStore, opts ...auth.TokenOption) *auth.TokenService {
	t.Helper()
	ctx := context.Background()
	svc, err := auth.NewTokenService("test-secret",
		store.Users(ctx), store.RefreshTokens(ctx), opts...)
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, store *authtest.MemStore, u *auth.User) *auth.User {
	t.Helper()
	if u == nil {
		u = &auth.User{}
	}
	if u.Email == "" {
		u.Email = "alice@example.com"
	}
	if u.Username == "" {
		u.Username = "alice"
	}
	if u.OrganizationID == "" {
		u.OrganizationID = "org-001"
	}
	u.Active = true
	require.NoError(t, store.Users(context.Background()).Create(context.Background(), u))
	return u
}

func TestTokenRoundTrip(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, &auth.User{TokenVersion: 3})

	token, _, err := svc.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.Verify(token, auth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.OrganizationID, claims.OrganizationID)
	assert.Equal(t, auth.TokenAccess, claims.TokenType)
	assert.Equal(t, int64(3), claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyExpiryBoundaryIsExclusive(t *testing.T) {
	store := authtest.NewStore()
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	svc := newTestTokenService(t, store,
		auth.WithAccessTTL(30*time.Minute),
		auth.WithClock(func() time.Time { return now }),
	)
	user := seedUser(t, store, nil)

	token, expiresAt, err := svc.IssueAccessToken(user)
	require.NoError(t, err)

	now = expiresAt.Add(-time.Second)
	_, err = svc.Verify(token, auth.TokenAccess)
	assert.NoError(t, err)

	// Exactly at exp the token is already expired.
	now = expiresAt
	_, err = svc.Verify(token, auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)

	now = expiresAt.Add(time.Second)
	_, err = svc.Verify(token, auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)

	refresh, _, err := svc.IssueRefreshToken(context.Background(), user)
	require.NoError(t, err)
	_, err = svc.Verify(refresh, auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrWrongTokenType)

	access, _, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	_, err = svc.Verify(access, auth.TokenRefresh)
	assert.ErrorIs(t, err, auth.ErrWrongTokenType)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)

	token, _, err := svc.IssueAccessToken(user)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = svc.Verify(tampered, auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)

	// A token signed under one secret never validates under another.
	ctx := context.Background()
	other, err := auth.NewTokenService("another-secret", store.Users(ctx), store.RefreshTokens(ctx))
	require.NoError(t, err)
	_, err = other.Verify(token, auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)

	_, err := svc.Verify("", auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	_, err = svc.Verify("not-a-jwt", auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrMalformedToken)

	_, err = svc.Verify("aaaa.bbbb.cccc", auth.TokenAccess)
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, user)
	require.NoError(t, err)

	rotated, _, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Using the consumed token again must fail while the rotated one works.
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)

	_, _, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshConcurrentReplaySingleWinner(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, user)
	require.NoError(t, err)

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		revoked int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Refresh(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			default:
				assert.ErrorIs(t, err, auth.ErrRevokedToken)
				revoked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one concurrent refresh may succeed")
	assert.Equal(t, attempts-1, revoked)
}

func TestRefreshRejectsStaleTokenVersion(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, user)
	require.NoError(t, err)

	require.NoError(t, store.Users(ctx).BumpTokenVersion(ctx, user.ID))

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	store := authtest.NewStore()
	svc := newTestTokenService(t, store)
	user := seedUser(t, store, nil)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, user)
	require.NoError(t, err)

	store.SetUserActive(user.ID, false)

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)
}
