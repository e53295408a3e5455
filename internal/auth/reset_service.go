// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// RequestReset issues a reset token for the user whose username or email
// equals identifier. Unknown identifiers fail with ErrUserNotFound.
//
// The plaintext token is returned to the caller. When a ResetNotifier is
// configured it is also delivered out of band; delivery failures are logged
// and do not fail the request.
func (s *SessionService) RequestReset(ctx context.Context, identifier string) (string, error) {
	user, err := s.store.Users().GetByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		return "", oops.Code("RESET_USER_NOT_FOUND").
			Public("User not found").
			Wrap(ErrUserNotFound)
	}
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "get user by identifier").Wrap(err)
	}

	token, _, err := s.IssueResetToken(ctx, user.ID)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyReset(ctx, user, token); err != nil {
			slog.WarnContext(ctx, "reset token delivery failed",
				"user_id", user.ID.String(),
				"error", err)
		}
	}

	return token, nil
}

// ConsumeReset sets a new password using a reset token. The token is
// claimed and the password overwritten in one transaction, so a token can
// succeed at most once.
func (s *SessionService) ConsumeReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	invalidToken := oops.Code("RESET_TOKEN_INVALID").Public("Invalid or expired reset token")
	if token == "" {
		return invalidToken.Wrap(ErrTokenInvalid)
	}

	// Hashing is slow; keep it outside the transaction.
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").With("operation", "hash password").Wrap(err)
	}

	return s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		row, err := tx.Tokens().Consume(ctx, TokenKindReset, HashToken(token))
		if errors.Is(err, ErrNotFound) {
			return invalidToken.Wrap(ErrTokenInvalid)
		}
		if err != nil {
			return oops.Code("RESET_CONSUME_FAILED").With("operation", "consume reset token").Wrap(err)
		}
		if row.IsExpiredAt(s.now()) {
			return invalidToken.With("expired_at", row.ExpiresAt).Wrap(ErrTokenInvalid)
		}

		err = tx.Users().UpdatePassword(ctx, row.UserID, newHash)
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_USER_MISSING").
				With("user_id", row.UserID.String()).
				Public("User not found for the provided token").
				Wrap(ErrTokenInvalid)
		}
		if err != nil {
			return oops.Code("RESET_CONSUME_FAILED").
				With("operation", "update password").
				With("user_id", row.UserID.String()).
				Wrap(err)
		}
		return nil
	})
}
