// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package memory provides an in-process auth.Store for tests and local
// development. State is lost when the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

// state is the full data set. Transactions work on a clone and swap it in
// on commit.
type state struct {
	users  map[ulid.ULID]auth.User
	tokens map[string]auth.Token // keyed by token hash
}

func newState() *state {
	return &state{
		users:  make(map[ulid.ULID]auth.User),
		tokens: make(map[string]auth.Token),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:  make(map[ulid.ULID]auth.User, len(s.users)),
		tokens: make(map[string]auth.Token, len(s.tokens)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

// runner applies an operation to some state, taking whatever lock it needs.
type runner func(ctx context.Context, fn func(*state) error) error

// Store is a mutex-guarded auth.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) run(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through unchanged
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Users returns the user repository.
func (s *Store) Users() auth.UserRepository {
	return &UserRepository{run: s.run}
}

// Tokens returns the token repository.
func (s *Store) Tokens() auth.TokenRepository {
	return &TokenRepository{run: s.run}
}

// InTx runs fn with exclusive access to a copy of the state. The copy
// replaces the live state only if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through unchanged
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &txStore{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// txStore is the view handed to an InTx callback. The parent Store lock is
// already held, so operations touch the working copy directly.
type txStore struct {
	st *state
}

func (t *txStore) run(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through unchanged
	}
	return fn(t.st)
}

func (t *txStore) Users() auth.UserRepository   { return &UserRepository{run: t.run} }
func (t *txStore) Tokens() auth.TokenRepository { return &TokenRepository{run: t.run} }

// InTx joins the enclosing transaction.
func (t *txStore) InTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	return fn(ctx, t)
}

var (
	_ auth.Store = (*Store)(nil)
	_ auth.Store = (*txStore)(nil)
)
