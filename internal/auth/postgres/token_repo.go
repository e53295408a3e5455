// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

const tokenColumns = `id, user_id, kind, token_hash, expires_at, created_at`

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.Token) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tokens (id, user_id, kind, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID.String(),
		string(token.Kind),
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("kind", token.Kind.String()).
			With("cause", err.Error()).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("kind", token.Kind.String()).
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByHash retrieves a token of the given kind by hash.
func (r *TokenRepository) GetByHash(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE token_hash = $1 AND kind = $2
	`, tokenHash, string(kind))

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("kind", kind.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by hash").
			With("kind", kind.String()).
			Wrap(err)
	}
	return token, nil
}

// Consume deletes the token and returns the deleted row. The DELETE is a
// single statement, so concurrent consumers of one token see at most one
// success.
func (r *TokenRepository) Consume(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	row := r.db.QueryRow(ctx, `
		DELETE FROM tokens
		WHERE token_hash = $1 AND kind = $2
		RETURNING `+tokenColumns, tokenHash, string(kind))

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("kind", kind.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_CONSUME_FAILED").
			With("operation", "delete token returning").
			With("kind", kind.String()).
			Wrap(err)
	}
	return token, nil
}

// DeleteExpired removes tokens that expired at or before now.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*auth.Token, error) {
	var (
		token     auth.Token
		idStr     string
		userIDStr string
		kind      string
	)
	if err := row.Scan(&idStr, &userIDStr, &kind, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers classify pgx.ErrNoRows
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}

	token.ID = id
	token.UserID = userID
	token.Kind = auth.TokenKind(kind)
	return &token, nil
}

var _ auth.TokenRepository = (*TokenRepository)(nil)
