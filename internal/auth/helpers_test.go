// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/memory"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires the services over an in-memory store.
type fixture struct {
	store       *memory.Store
	hasher      *auth.Argon2idHasher
	clock       *fakeClock
	sessions    *auth.SessionService
	credentials *auth.CredentialService
}

func newFixture(t *testing.T, opts ...auth.SessionOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		hasher: auth.NewArgon2idHasher(),
		clock:  newFakeClock(),
	}
	opts = append([]auth.SessionOption{auth.WithClock(f.clock.Now)}, opts...)

	var err error
	f.sessions, err = auth.NewSessionService(f.store, f.hasher, opts...)
	require.NoError(t, err)
	f.credentials, err = auth.NewCredentialService(f.store, f.hasher, f.sessions)
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) *auth.User {
	t.Helper()
	user, err := f.credentials.Register(context.Background(), username, email, password)
	require.NoError(t, err)
	return user
}
