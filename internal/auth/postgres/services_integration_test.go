// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/postgres"
)

var _ = Describe("Services on PostgreSQL", func() {
	var (
		ctx         context.Context
		sessions    *auth.SessionService
		credentials *auth.CredentialService
	)

	BeforeEach(func() {
		ctx = env.ctx
		env.truncate()

		st := postgres.NewStore(env.pool)
		hasher := auth.NewArgon2idHasher()

		var err error
		sessions, err = auth.NewSessionService(st, hasher)
		Expect(err).NotTo(HaveOccurred())
		credentials, err = auth.NewCredentialService(st, hasher, sessions)
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers, logs in and logs out", func() {
		_, err := credentials.Register(ctx, "alice", "alice@example.com", "password123")
		Expect(err).NotTo(HaveOccurred())

		token, row, err := credentials.Login(ctx, "alice", "password123")
		Expect(err).NotTo(HaveOccurred())
		Expect(row.Kind).To(Equal(auth.TokenKindSession))

		_, user, err := sessions.Validate(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Username).To(Equal("alice"))

		Expect(sessions.Revoke(ctx, token)).To(Succeed())
		Expect(errors.Is(sessions.Revoke(ctx, token), auth.ErrTokenInvalid)).To(BeTrue())
	})

	It("admits one of many concurrent registrations for a username", func() {
		const workers = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				email := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}[i]
				_, err := credentials.Register(ctx, "contended", email, "password123")
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				Expect(errors.Is(err, auth.ErrConflict)).To(BeTrue())
			}()
		}
		wg.Wait()
		Expect(successes).To(Equal(1))
	})

	It("consumes a reset token exactly once", func() {
		_, err := credentials.Register(ctx, "alice", "alice@example.com", "password123")
		Expect(err).NotTo(HaveOccurred())

		token, err := sessions.RequestReset(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		Expect(sessions.ConsumeReset(ctx, token, "newpassword1")).To(Succeed())
		err = sessions.ConsumeReset(ctx, token, "newpassword2")
		Expect(errors.Is(err, auth.ErrTokenInvalid)).To(BeTrue())

		_, _, err = credentials.Login(ctx, "alice", "newpassword1")
		Expect(err).NotTo(HaveOccurred())
		_, _, err = credentials.Login(ctx, "alice", "password123")
		Expect(errors.Is(err, auth.ErrInvalidCredentials)).To(BeTrue())
	})
})
