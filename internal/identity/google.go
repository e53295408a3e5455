// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package identity provides the external identity providers used for
// OAuth login.
package identity

import (
	"context"
	"net/url"

	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
)

// GoogleAuthURL is the Google OAuth2 consent endpoint.
const GoogleAuthURL = "https://accounts.google.com/o/oauth2/auth"

// Stub exchange values. The code exchange does not contact Google; the
// single accepted code yields a fixed identity.
const (
	StubValidCode   = "valid_code"
	StubAccessToken = "dummy_access_token"
	StubIDToken     = "dummy_id_token"
	StubEmail       = "testuser@example.com"
)

// Google is an auth.IdentityProvider for Google accounts.
type Google struct {
	cfg     config.GoogleConfig
	authURL string
}

var _ auth.IdentityProvider = (*Google)(nil)

// NewGoogle creates a Google provider. Incomplete settings are reported
// by the provider methods, not here, so the service can start without them.
func NewGoogle(cfg config.GoogleConfig) *Google {
	return &Google{cfg: cfg, authURL: GoogleAuthURL}
}

// Name implements auth.IdentityProvider.
func (g *Google) Name() string { return "google" }

// AuthorizationURL implements auth.IdentityProvider.
func (g *Google) AuthorizationURL() (string, error) {
	if g.cfg.ClientID == "" || g.cfg.RedirectURI == "" {
		return "", oops.Code("GOOGLE_MISCONFIGURED").
			With("client_id_set", g.cfg.ClientID != "").
			With("redirect_uri_set", g.cfg.RedirectURI != "").
			Wrap(auth.ErrMisconfigured)
	}

	u, err := url.Parse(g.authURL)
	if err != nil {
		return "", oops.Code("GOOGLE_AUTH_URL_INVALID").With("url", g.authURL).Wrap(err)
	}
	q := u.Query()
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURI)
	q.Set("response_type", "code")
	if g.cfg.Scope != "" {
		q.Set("scope", g.cfg.Scope)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange implements auth.IdentityProvider.
func (g *Google) Exchange(ctx context.Context, code string) (*auth.Identity, error) {
	if !g.cfg.Complete() {
		return nil, oops.Code("GOOGLE_MISCONFIGURED").
			With("client_id_set", g.cfg.ClientID != "").
			With("client_secret_set", g.cfg.ClientSecret != "").
			With("redirect_uri_set", g.cfg.RedirectURI != "").
			Wrap(auth.ErrMisconfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("GOOGLE_EXCHANGE_FAILED").Wrap(err)
	}
	if code != StubValidCode {
		return nil, oops.Code("GOOGLE_EXCHANGE_FAILED").Errorf("authorization code rejected")
	}
	return &auth.Identity{
		AccessToken: StubAccessToken,
		IDToken:     StubIDToken,
		Email:       StubEmail,
	}, nil
}
