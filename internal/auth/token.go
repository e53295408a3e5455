// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenKind distinguishes what an opaque token may be used for.
type TokenKind string

// Token kinds.
const (
	TokenKindSession TokenKind = "session"
	TokenKindReset   TokenKind = "reset"
)

// Token configuration.
const (
	TokenBytes        = 32 // 32 bytes = 64 hex chars
	ResetTokenPrefix  = "reset:"
	DefaultSessionTTL = 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindSession || k == TokenKindReset
}

func (k TokenKind) String() string { return string(k) }

// Token is a stored opaque token. Only the SHA-256 hash of the token
// string is persisted; the plaintext is handed to the caller once.
type Token struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Kind      TokenKind
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewToken creates a validated Token.
func NewToken(userID ulid.ULID, kind TokenKind, tokenHash string, createdAt, expiresAt time.Time) (*Token, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if !kind.Valid() {
		return nil, oops.Code("TOKEN_INVALID_KIND").With("kind", string(kind)).Errorf("unknown token kind")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}

	return &Token{
		ID:        ulid.Make(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt returns true if the token would be expired at the given time.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// GenerateToken creates a random token string for the kind and its hash.
// Reset tokens carry the "reset:" prefix; session tokens are bare hex.
func GenerateToken(kind TokenKind) (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	if kind == TokenKindReset {
		token = ResetTokenPrefix + token
	}
	return token, HashToken(token), nil
}

// HashToken computes the hex SHA-256 digest stored in place of a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenRepository manages token persistence.
type TokenRepository interface {
	// Create stores a new token. Returns an error wrapping ErrConflict on a
	// duplicate hash.
	Create(ctx context.Context, token *Token) error

	// GetByHash retrieves a token of the given kind by hash.
	GetByHash(ctx context.Context, kind TokenKind, tokenHash string) (*Token, error)

	// Consume atomically deletes the token of the given kind and returns it.
	// Exactly one concurrent caller can consume a given token.
	Consume(ctx context.Context, kind TokenKind, tokenHash string) (*Token, error)

	// DeleteExpired removes every token that expired at or before now and
	// returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store is a handle to the persistent state shared by the services.
type Store interface {
	Users() UserRepository
	Tokens() TokenRepository

	// InTx runs fn against a transactional view of the store. Changes are
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
