// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a username is unknown so that a failed
// login costs the same as a wrong password.
//
//nolint:gosec // G101: intentionally fake hash, never matches any password.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialService registers users and verifies their passwords.
type CredentialService struct {
	store    Store
	hasher   PasswordHasher
	sessions *SessionService
}

// NewCredentialService creates a CredentialService. Successful logins are
// handed to sessions to mint a session token.
func NewCredentialService(store Store, hasher PasswordHasher, sessions *SessionService) (*CredentialService, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("store cannot be nil")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("hasher cannot be nil")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session service cannot be nil")
	}
	return &CredentialService{store: store, hasher: hasher, sessions: sessions}, nil
}

func conflictError(username, email string) error {
	return oops.Code("USER_EXISTS").
		With("username", username).
		With("email", email).
		Public("User with this username or email already exists.").
		Wrap(ErrConflict)
}

// Register creates a user after validating input and checking that neither
// the username nor the email is taken.
func (s *CredentialService) Register(ctx context.Context, username, email, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.store.Users().ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").With("operation", "check existing user").Wrap(err)
	}
	if exists {
		return nil, conflictError(username, email)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(username, email, hash)
	if err != nil {
		return nil, err
	}

	// A concurrent registration can still win between the check and the insert.
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictError(username, email)
		}
		return nil, oops.Code("USER_REGISTER_FAILED").With("operation", "insert user").Wrap(err)
	}
	return user, nil
}

// Login verifies a username and password and issues a session token.
// Unknown usernames and wrong passwords fail identically.
func (s *CredentialService) Login(ctx context.Context, username, password string) (string, *Token, error) {
	invalid := oops.Code("AUTH_INVALID_CREDENTIALS").Public("Invalid credentials")

	user, lookupErr := s.store.Users().GetByUsername(ctx, username)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return "", nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return "", nil, invalid.Wrap(ErrInvalidCredentials)
		}
		return "", nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return "", nil, invalid.Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, row, err := s.sessions.IssueSession(ctx, user.ID)
	if err != nil {
		return "", nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return token, row, nil
}

// upgradeHash rehashes a legacy password hash. Login succeeds regardless.
func (s *CredentialService) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.store.Users().UpdatePassword(ctx, user.ID, newHash)
	}
	if err != nil {
		slog.WarnContext(ctx, "password hash upgrade failed",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	user.PasswordHash = newHash
	slog.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}
