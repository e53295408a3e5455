// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

// testingT is what the constructors need to register expectation checks.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t testingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its
// expectations when the test ends.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(t, &m.Mock)
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	register(t, &m.Mock)
	return m
}

func userResult(args mock.Arguments) (*auth.User, error) {
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return userResult(m.Called(ctx, username))
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *MockUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return userResult(m.Called(ctx, identifier))
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// MockTokenRepository mocks auth.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

// NewMockTokenRepository creates a MockTokenRepository.
func NewMockTokenRepository(t testingT) *MockTokenRepository {
	m := &MockTokenRepository{}
	register(t, &m.Mock)
	return m
}

func tokenResult(args mock.Arguments) (*auth.Token, error) {
	tok, _ := args.Get(0).(*auth.Token)
	return tok, args.Error(1)
}

func (m *MockTokenRepository) Create(ctx context.Context, token *auth.Token) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenRepository) GetByHash(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	return tokenResult(m.Called(ctx, kind, tokenHash))
}

func (m *MockTokenRepository) Consume(ctx context.Context, kind auth.TokenKind, tokenHash string) (*auth.Token, error) {
	return tokenResult(m.Called(ctx, kind, tokenHash))
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// Store is an auth.Store over mock repositories. InTx runs fn directly
// against the same repositories unless TxErr is set.
type Store struct {
	UserRepo  *MockUserRepository
	TokenRepo *MockTokenRepository
	TxErr     error
}

// NewStore creates a Store with fresh mock repositories.
func NewStore(t testingT) *Store {
	return &Store{
		UserRepo:  NewMockUserRepository(t),
		TokenRepo: NewMockTokenRepository(t),
	}
}

func (s *Store) Users() auth.UserRepository   { return s.UserRepo }
func (s *Store) Tokens() auth.TokenRepository { return s.TokenRepo }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	if s.TxErr != nil {
		return s.TxErr
	}
	return fn(ctx, s)
}

// MockResetNotifier mocks auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a MockResetNotifier.
func NewMockResetNotifier(t testingT) *MockResetNotifier {
	m := &MockResetNotifier{}
	register(t, &m.Mock)
	return m
}

func (m *MockResetNotifier) NotifyReset(ctx context.Context, user *auth.User, token string) error {
	return m.Called(ctx, user, token).Error(0)
}

// MockIdentityProvider mocks auth.IdentityProvider.
type MockIdentityProvider struct {
	mock.Mock
}

// NewMockIdentityProvider creates a MockIdentityProvider. Name is stubbed
// to "mock" for any number of calls.
func NewMockIdentityProvider(t testingT) *MockIdentityProvider {
	m := &MockIdentityProvider{}
	register(t, &m.Mock)
	m.On("Name").Return("mock").Maybe()
	return m
}

func (m *MockIdentityProvider) Name() string {
	return m.Called().String(0)
}

func (m *MockIdentityProvider) AuthorizationURL() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*auth.Identity, error) {
	args := m.Called(ctx, code)
	id, _ := args.Get(0).(*auth.Identity)
	return id, args.Error(1)
}

var (
	_ auth.PasswordHasher   = (*MockPasswordHasher)(nil)
	_ auth.UserRepository   = (*MockUserRepository)(nil)
	_ auth.TokenRepository  = (*MockTokenRepository)(nil)
	_ auth.Store            = (*Store)(nil)
	_ auth.ResetNotifier    = (*MockResetNotifier)(nil)
	_ auth.IdentityProvider = (*MockIdentityProvider)(nil)
)
