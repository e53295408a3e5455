// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package web exposes the authentication services over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/observability"
)

// requestTimeout bounds the work done for a single request.
const requestTimeout = 30 * time.Second

// Services are the domain services the HTTP layer calls.
type Services struct {
	Credentials *auth.CredentialService
	Sessions    *auth.SessionService
	OAuth       *auth.OAuthService
}

// Handler serves the HTTP API.
type Handler struct {
	credentials *auth.CredentialService
	sessions    *auth.SessionService
	oauth       *auth.OAuthService
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewHandler creates a Handler. A nil logger uses slog.Default; nil metrics
// disables recording.
func NewHandler(svc Services, logger *slog.Logger, metrics *observability.Metrics) (*Handler, error) {
	if svc.Credentials == nil || svc.Sessions == nil || svc.OAuth == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("credential, session and oauth services are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		credentials: svc.Credentials,
		sessions:    svc.Sessions,
		oauth:       svc.OAuth,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Routes returns the router with middleware applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/register", h.wrap(h.register))
	r.Post("/login", h.wrap(h.login))
	r.Post("/logout", h.wrap(h.logout))
	r.Post("/password-reset", h.wrap(h.passwordReset))
	r.Post("/password-update", h.wrap(h.passwordUpdate))
	r.Get("/google-login", h.wrap(h.googleLogin))
	r.Get("/google-callback", h.wrap(h.googleCallback))
	r.Get("/session", h.wrap(h.session))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
	})
	return r
}
