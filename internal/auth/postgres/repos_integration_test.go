// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/postgres"
)

var _ = Describe("Repositories", func() {
	var (
		ctx context.Context
		st  *postgres.Store
	)

	BeforeEach(func() {
		ctx = env.ctx
		env.truncate()
		st = postgres.NewStore(env.pool)
	})

	createUser := func(username, email string) *auth.User {
		u, err := auth.NewUser(username, email, "hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Users().Create(ctx, u)).To(Succeed())
		return u
	}

	Describe("users", func() {
		It("round-trips a user", func() {
			u := createUser("alice", "alice@example.com")

			got, err := st.Users().GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("alice"))
			Expect(got.Email).To(Equal("alice@example.com"))
			Expect(got.CreatedAt).To(BeTemporally("~", u.CreatedAt, time.Millisecond))
		})

		It("reports duplicate usernames and emails as conflicts", func() {
			createUser("alice", "alice@example.com")

			dup, err := auth.NewUser("alice", "other@example.com", "hash")
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(st.Users().Create(ctx, dup), auth.ErrConflict)).To(BeTrue())

			dup, err = auth.NewUser("bob", "alice@example.com", "hash")
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(st.Users().Create(ctx, dup), auth.ErrConflict)).To(BeTrue())
		})

		It("treats usernames case-sensitively", func() {
			createUser("alice", "alice@example.com")
			_, err := st.Users().GetByUsername(ctx, "Alice")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("prefers a username match for identifiers", func() {
			byEmail := createUser("first", "shared@example.com")
			byName := createUser("shared@example.com", "second@example.com")

			got, err := st.Users().GetByIdentifier(ctx, "shared@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(byName.ID))
			Expect(got.ID).NotTo(Equal(byEmail.ID))
		})

		It("updates the password hash", func() {
			u := createUser("alice", "alice@example.com")
			Expect(st.Users().UpdatePassword(ctx, u.ID, "new-hash")).To(Succeed())

			got, err := st.Users().GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))
			Expect(got.UpdatedAt).To(BeTemporally(">=", got.CreatedAt))

			err = st.Users().UpdatePassword(ctx, ulid.Make(), "x")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("tokens", func() {
		var user *auth.User

		BeforeEach(func() {
			user = createUser("alice", "alice@example.com")
		})

		newToken := func(kind auth.TokenKind, hash string, expires time.Time) *auth.Token {
			tok, err := auth.NewToken(user.ID, kind, hash, expires.Add(-time.Hour), expires)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Tokens().Create(ctx, tok)).To(Succeed())
			return tok
		}

		It("looks tokens up by kind and hash", func() {
			tok := newToken(auth.TokenKindReset, "reset-hash", time.Now().Add(time.Hour))

			got, err := st.Tokens().GetByHash(ctx, auth.TokenKindReset, "reset-hash")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(tok.ID))
			Expect(got.UserID).To(Equal(user.ID))

			_, err = st.Tokens().GetByHash(ctx, auth.TokenKindSession, "reset-hash")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rejects tokens for unknown users", func() {
			tok, err := auth.NewToken(ulid.Make(), auth.TokenKindSession, "orphan", time.Now(), time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			err = st.Tokens().Create(ctx, tok)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, auth.ErrConflict)).To(BeFalse())
		})

		It("lets exactly one concurrent consumer win", func() {
			newToken(auth.TokenKindSession, "race-hash", time.Now().Add(time.Hour))

			const workers = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := st.Tokens().Consume(ctx, auth.TokenKindSession, "race-hash")
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
						return
					}
					Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
				}()
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
		})

		It("deletes expired tokens only", func() {
			now := time.Now()
			newToken(auth.TokenKindSession, "old", now.Add(-time.Minute))
			newToken(auth.TokenKindReset, "live", now.Add(time.Minute))

			n, err := st.Tokens().DeleteExpired(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			_, err = st.Tokens().GetByHash(ctx, auth.TokenKindReset, "live")
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes a user's tokens when the user is deleted", func() {
			newToken(auth.TokenKindSession, "cascade", time.Now().Add(time.Hour))
			_, err := env.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = st.Tokens().GetByHash(ctx, auth.TokenKindSession, "cascade")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("transactions", func() {
		It("rolls back on error", func() {
			boom := errors.New("boom")
			err := st.InTx(ctx, func(ctx context.Context, tx auth.Store) error {
				u, err := auth.NewUser("ghost", "ghost@example.com", "hash")
				Expect(err).NotTo(HaveOccurred())
				Expect(tx.Users().Create(ctx, u)).To(Succeed())
				return boom
			})
			Expect(err).To(MatchError(boom))

			_, err = st.Users().GetByUsername(ctx, "ghost")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rolls back only the savepoint of a nested failure", func() {
			err := st.InTx(ctx, func(ctx context.Context, tx auth.Store) error {
				u, err := auth.NewUser("outer", "outer@example.com", "hash")
				Expect(err).NotTo(HaveOccurred())
				Expect(tx.Users().Create(ctx, u)).To(Succeed())

				inner := tx.InTx(ctx, func(ctx context.Context, tx auth.Store) error {
					dup, err := auth.NewUser("outer", "dup@example.com", "hash")
					Expect(err).NotTo(HaveOccurred())
					return tx.Users().Create(ctx, dup)
				})
				Expect(errors.Is(inner, auth.ErrConflict)).To(BeTrue())
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = st.Users().GetByUsername(ctx, "outer")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
