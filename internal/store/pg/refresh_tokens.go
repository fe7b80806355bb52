package pg

import (
	"context"
	"database/sql"

	"kastel.org/internal/auth"
)

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, expires_at)
		values ($1, $2, $3)
	`, tok.ID, tok.UserID, tok.ExpiresAt)
	return mapWriteError(err)
}

// Consume marks the token used. The conditional update is the whole
// single-use guarantee: it commits for exactly one of any number of
// concurrent calls, and every loser observes zero affected rows.
func (s *refreshTokenStore) Consume(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set used_at = now()
		where id = $1
		  and used_at is null
		  and not revoked
		  and expires_at > now()
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrRevokedToken
	}
	return nil
}

func (s *refreshTokenStore) RevokeByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set revoked = true
		where user_id = $1 and used_at is null and not revoked
	`, userID)
	return err
}
