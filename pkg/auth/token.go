package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/store"
)

const (
	// TokenPrefix identifies DocVault bearer tokens.
	TokenPrefix = "dv_"
	// TokenLength is the number of random bytes in a token (256 bits).
	TokenLength = 32
)

// GenerateToken creates a new bearer token.
// Format: dv_<base64url(32 random bytes)>. The SHA-256 hash is what gets
// stored; the display prefix is the first 8 encoded characters.
func GenerateToken() (token, tokenHash, tokenPrefix string, err error) {
	raw := make([]byte, TokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generate token bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	token = TokenPrefix + encoded
	tokenHash = HashToken(token)
	tokenPrefix = TokenPrefix + encoded[:8]
	return token, tokenHash, tokenPrefix, nil
}

// HashToken computes the SHA-256 hash of a token for storage and lookup.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateTokenFormat checks shape before touching the database.
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}

// TokenManager issues, validates and revokes bearer tokens against the
// entity store.
type TokenManager struct {
	store *store.Store
	ttl   time.Duration
}

// NewTokenManager creates a token manager. A zero ttl means tokens never
// expire on their own and live until revoked.
func NewTokenManager(s *store.Store, ttl time.Duration) *TokenManager {
	return &TokenManager{store: s, ttl: ttl}
}

// Issue creates and persists a token for a user, returning the plaintext
// exactly once.
func (tm *TokenManager) Issue(ctx context.Context, userID int64) (string, *store.Token, error) {
	token, hash, prefix, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	rec := &store.Token{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
	}
	if tm.ttl > 0 {
		expires := time.Now().UTC().Add(tm.ttl)
		rec.ExpiresAt = &expires
	}
	if err := tm.store.CreateToken(ctx, rec); err != nil {
		return "", nil, err
	}
	return token, rec, nil
}

// Validate resolves a presented token to its record. Malformed, unknown,
// revoked and expired tokens all map to Unauthenticated.
func (tm *TokenManager) Validate(ctx context.Context, token string) (*store.Token, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, apperrors.Unauthenticated("invalid token format")
	}
	return tm.store.GetTokenByHash(ctx, HashToken(token))
}

// Revoke invalidates a presented token. Unknown tokens are a no-op.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	return tm.store.RevokeToken(ctx, HashToken(token))
}
