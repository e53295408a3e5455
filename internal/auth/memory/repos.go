// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package memory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	run runner
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	return r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == user.Username || u.Email == user.Email {
				return oops.Code("USER_CREATE_FAILED").
					With("username", user.Username).
					Wrap(auth.ErrConflict)
			}
		}
		if _, ok := st.users[user.ID]; ok {
			return oops.Code("USER_CREATE_FAILED").With("id", user.ID.String()).Wrap(auth.ErrConflict)
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (r *UserRepository) find(ctx context.Context, code string, match func(auth.User) bool) (*auth.User, error) {
	var found *auth.User
	err := r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				found = &u
				return nil
			}
		}
		return oops.Code(code).Wrap(auth.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.find(ctx, "USER_NOT_FOUND", func(u auth.User) bool { return u.ID == id })
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.find(ctx, "USER_NOT_FOUND", func(u auth.User) bool { return u.Username == username })
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.find(ctx, "USER_NOT_FOUND", func(u auth.User) bool { return u.Email == email })
}

// GetByIdentifier retrieves a user by username or email. A username match
// wins over an email match.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	var found *auth.User
	err := r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == identifier {
				found = &u
				return nil
			}
			if u.Email == identifier && found == nil {
				found = &u
			}
		}
		if found == nil {
			return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ExistsByUsernameOrEmail reports whether the username or email is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	exists := false
	err := r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == username || u.Email == email {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

// UpdatePassword overwrites a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.run(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now()
		st.users[id] = u
		return nil
	})
}

// TokenRepository implements auth.TokenRepository in memory.
type TokenRepository struct {
	run runner
}

// Create stores a new token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.Token) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.tokens[token.TokenHash]; ok {
			return oops.Code("TOKEN_CREATE_FAILED").With("kind", token.Kind.String()).Wrap(auth.ErrConflict)
		}
		if _, ok := st.users[token.UserID]; !ok {
			return oops.Code("TOKEN_CREATE_FAILED").
				With("user_id", token.UserID.String()).
				Errorf("user does not exist")
		}
		st.tokens[token.TokenHash] = *token
		return nil
	})
}

// GetByHash retrieves a token of the given kind by hash.
func (r *TokenRepository) GetByHash(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	var found *auth.Token
	err := r.run(ctx, func(st *state) error {
		t, ok := st.tokens[tokenHash]
		if !ok || t.Kind != kind {
			return oops.Code("TOKEN_NOT_FOUND").With("kind", kind.String()).Wrap(auth.ErrNotFound)
		}
		found = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Consume deletes and returns the token of the given kind.
func (r *TokenRepository) Consume(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	var found *auth.Token
	err := r.run(ctx, func(st *state) error {
		t, ok := st.tokens[tokenHash]
		if !ok || t.Kind != kind {
			return oops.Code("TOKEN_NOT_FOUND").With("kind", kind.String()).Wrap(auth.ErrNotFound)
		}
		delete(st.tokens, tokenHash)
		found = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// DeleteExpired removes tokens expired at or before now.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.run(ctx, func(st *state) error {
		for hash, t := range st.tokens {
			if t.IsExpiredAt(now) {
				delete(st.tokens, hash)
				n++
			}
		}
		return nil
	})
	return n, err
}

var (
	_ auth.UserRepository  = (*UserRepository)(nil)
	_ auth.TokenRepository = (*TokenRepository)(nil)
)
