package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// Token is a stored bearer token. Only the SHA-256 hash is persisted; the
// plaintext is returned to the client once at login and never stored.
type Token struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateToken persists a new token record.
func (s *Store) CreateToken(ctx context.Context, t *Token) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tokens (user_id, token_hash, token_prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.UserID, t.TokenHash, t.TokenPrefix, nullableTime(t.ExpiresAt), now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	t.CreatedAt = now
	return nil
}

// GetTokenByHash looks up a live token by its hash. Revoked and expired
// tokens resolve to NotFound; last_used_at is refreshed on hit.
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, expires_at, last_used_at, revoked_at, created_at
		FROM tokens WHERE token_hash = $1
	`, hash)

	var t Token
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix,
		&expiresAt, &lastUsedAt, &revokedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Unauthenticated("invalid token")
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.ExpiresAt = scanNullableTime(expiresAt)
	t.LastUsedAt = scanNullableTime(lastUsedAt)
	t.RevokedAt = scanNullableTime(revokedAt)

	now := time.Now().UTC()
	if t.RevokedAt != nil {
		return nil, apperrors.Unauthenticated("token has been revoked")
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
		return nil, apperrors.Unauthenticated("token has expired")
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET last_used_at = $1 WHERE id = $2", now, t.ID); err != nil {
		return nil, fmt.Errorf("touch token: %w", err)
	}
	t.LastUsedAt = &now
	return &t, nil
}

// RevokeToken marks a token as revoked by its hash. Revoking an unknown
// token is a no-op so logout is idempotent.
func (s *Store) RevokeToken(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL",
		time.Now().UTC(), hash)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeUserTokens revokes every live token of a user, used when a user
// is disabled or deleted.
func (s *Store) RevokeUserTokens(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL",
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}
