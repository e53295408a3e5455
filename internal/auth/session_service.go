// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// maxIssueAttempts bounds retries when a freshly generated token collides
// with an existing hash.
const maxIssueAttempts = 3

// ResetNotifier delivers a freshly issued reset token to its owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, user *User, token string) error
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithSessionTTL sets how long session tokens stay valid.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) { s.sessionTTL = ttl }
}

// WithResetTTL sets how long reset tokens stay valid.
func WithResetTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) { s.resetTTL = ttl }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// WithResetNotifier sets the notifier invoked after a reset token is issued.
func WithResetNotifier(n ResetNotifier) SessionOption {
	return func(s *SessionService) { s.notifier = n }
}

// SessionService owns the token lifecycle: issue, validate, revoke and
// consume. Issued tokens end in a terminal state when their row is deleted.
type SessionService struct {
	store      Store
	hasher     PasswordHasher
	notifier   ResetNotifier
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(store Store, hasher PasswordHasher, opts ...SessionOption) (*SessionService, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("store cannot be nil")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("hasher cannot be nil")
	}

	s := &SessionService{
		store:      store,
		hasher:     hasher,
		sessionTTL: DefaultSessionTTL,
		resetTTL:   DefaultResetTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sessionTTL <= 0 || s.resetTTL <= 0 {
		return nil, oops.Code("AUTH_INVALID_TTL").
			With("session_ttl", s.sessionTTL.String()).
			With("reset_ttl", s.resetTTL.String()).
			Errorf("token TTLs must be positive")
	}
	return s, nil
}

// IssueSession creates a session token for the user.
func (s *SessionService) IssueSession(ctx context.Context, userID ulid.ULID) (string, *Token, error) {
	return s.issue(ctx, s.store.Tokens(), userID, TokenKindSession, s.sessionTTL)
}

// IssueResetToken creates a "reset:" token for the user.
func (s *SessionService) IssueResetToken(ctx context.Context, userID ulid.ULID) (string, *Token, error) {
	return s.issue(ctx, s.store.Tokens(), userID, TokenKindReset, s.resetTTL)
}

func (s *SessionService) issue(ctx context.Context, tokens TokenRepository, userID ulid.ULID, kind TokenKind, ttl time.Duration) (string, *Token, error) {
	for attempt := 1; ; attempt++ {
		plaintext, hash, err := GenerateToken(kind)
		if err != nil {
			return "", nil, oops.Code("TOKEN_ISSUE_FAILED").With("kind", kind.String()).Wrap(err)
		}

		now := s.now()
		token, err := NewToken(userID, kind, hash, now, now.Add(ttl))
		if err != nil {
			return "", nil, oops.Code("TOKEN_ISSUE_FAILED").With("kind", kind.String()).Wrap(err)
		}

		err = tokens.Create(ctx, token)
		if err == nil {
			return plaintext, token, nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= maxIssueAttempts {
			return "", nil, oops.Code("TOKEN_ISSUE_FAILED").
				With("kind", kind.String()).
				With("user_id", userID.String()).
				With("attempt", attempt).
				Wrap(err)
		}
	}
}

// Revoke deletes a session token. Revoking an unknown or already revoked
// token fails with ErrTokenInvalid.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return invalidSessionToken(nil)
	}

	_, err := s.store.Tokens().Consume(ctx, TokenKindSession, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return invalidSessionToken(err)
	}
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").With("operation", "consume session token").Wrap(err)
	}
	return nil
}

func invalidSessionToken(cause error) error {
	b := oops.Code("SESSION_NOT_FOUND").Public("Invalid or missing session token")
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrap(ErrTokenInvalid)
}

// Validate resolves a live session token to its row and owner.
func (s *SessionService) Validate(ctx context.Context, token string) (*Token, *User, error) {
	unauthenticated := oops.Code("SESSION_INVALID").Public("Invalid or expired session token")
	if token == "" {
		return nil, nil, unauthenticated.Wrap(ErrUnauthenticated)
	}

	row, err := s.store.Tokens().GetByHash(ctx, TokenKindSession, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, nil, unauthenticated.Wrap(ErrUnauthenticated)
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").With("operation", "get token by hash").Wrap(err)
	}
	if row.IsExpiredAt(s.now()) {
		return nil, nil, unauthenticated.With("expired_at", row.ExpiresAt).Wrap(ErrUnauthenticated)
	}

	user, err := s.store.Users().GetByID(ctx, row.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, unauthenticated.With("user_id", row.UserID.String()).Wrap(ErrUnauthenticated)
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").With("operation", "get user by id").Wrap(err)
	}
	return row, user, nil
}

// PruneExpired removes expired tokens of every kind.
func (s *SessionService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Tokens().DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("TOKEN_PRUNE_FAILED").Wrap(err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "pruned expired tokens", "count", n)
	}
	return n, nil
}
