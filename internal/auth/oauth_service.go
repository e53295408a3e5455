// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Identity is what an external identity provider asserts about a user
// after a successful code exchange.
type Identity struct {
	AccessToken string
	IDToken     string
	Email       string
}

// IdentityProvider is an external OAuth2 provider.
type IdentityProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// AuthorizationURL returns the URL a browser is sent to for consent.
	// Fails with ErrMisconfigured when client settings are incomplete.
	AuthorizationURL() (string, error)

	// Exchange trades an authorization code for an Identity.
	// Fails with ErrMisconfigured when client settings are incomplete.
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// OAuthService logs existing users in through an IdentityProvider.
// Accounts are matched by email and are never created here.
type OAuthService struct {
	store    Store
	sessions *SessionService
	provider IdentityProvider
}

// NewOAuthService creates an OAuthService.
func NewOAuthService(store Store, sessions *SessionService, provider IdentityProvider) (*OAuthService, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("store cannot be nil")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session service cannot be nil")
	}
	if provider == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("identity provider cannot be nil")
	}
	return &OAuthService{store: store, sessions: sessions, provider: provider}, nil
}

// LoginURL returns the provider consent URL.
func (s *OAuthService) LoginURL() (string, error) {
	u, err := s.provider.AuthorizationURL()
	if err != nil {
		kind := ErrUpstream
		if errors.Is(err, ErrMisconfigured) {
			kind = ErrMisconfigured
		}
		return "", oops.Code("OAUTH_LOGIN_FAILED").
			With("provider", s.provider.Name()).
			With("cause", err.Error()).
			Public("Failed to initiate Google OAuth login process.").
			Wrap(kind)
	}
	return u, nil
}

// Callback exchanges an authorization code and issues a session for the
// user whose email the provider asserts.
func (s *OAuthService) Callback(ctx context.Context, code string) (string, *Token, error) {
	if code == "" {
		return "", nil, oops.Code("OAUTH_CODE_MISSING").
			Public("Authorization code is missing.").
			Wrap(ErrBadRequest)
	}

	identity, err := s.provider.Exchange(ctx, code)
	if errors.Is(err, ErrMisconfigured) {
		return "", nil, oops.Code("OAUTH_MISCONFIGURED").
			With("provider", s.provider.Name()).
			With("cause", err.Error()).
			Public("Google OAuth configuration is incomplete.").
			Wrap(ErrMisconfigured)
	}
	if err != nil {
		return "", nil, oops.Code("OAUTH_EXCHANGE_FAILED").
			With("provider", s.provider.Name()).
			With("cause", err.Error()).
			Public("Failed to exchange code for tokens.").
			Wrap(ErrUpstream)
	}

	if identity == nil || identity.AccessToken == "" || identity.IDToken == "" || identity.Email == "" {
		return "", nil, oops.Code("OAUTH_INVALID_IDENTITY").
			With("provider", s.provider.Name()).
			Public("Invalid token exchange response.").
			Wrap(ErrInvalidIdentity)
	}

	user, err := s.store.Users().GetByEmail(ctx, identity.Email)
	if errors.Is(err, ErrNotFound) {
		return "", nil, oops.Code("OAUTH_ACCOUNT_NOT_LINKED").
			With("provider", s.provider.Name()).
			With("email", identity.Email).
			Public("User not found for the provided Google account.").
			Wrap(ErrAccountNotLinked)
	}
	if err != nil {
		return "", nil, oops.Code("OAUTH_CALLBACK_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, row, err := s.sessions.IssueSession(ctx, user.ID)
	if err != nil {
		return "", nil, oops.Code("OAUTH_CALLBACK_FAILED").
			With("operation", "issue session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return token, row, nil
}
