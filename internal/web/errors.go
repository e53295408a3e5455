// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/pkg/errutil"
)

const msgInternal = "Internal server error"

// errorResponse is the body of every failed request.
type errorResponse struct {
	Detail string `json:"detail"`
}

// appHandler is an http.HandlerFunc that reports failure by returning an
// error instead of writing a response.
type appHandler func(w http.ResponseWriter, r *http.Request) error

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrBadRequest),
		errors.Is(err, auth.ErrConflict),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrAccountNotLinked),
		errors.Is(err, auth.ErrInvalidIdentity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the client-safe message for err. Errors that carry
// no public message are reported generically.
func publicMessage(err error) string {
	return oops.GetPublic(err, msgInternal)
}

// writeError translates err into a JSON error response. Server errors are
// logged with code, context and stacktrace; client errors at warn.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	errutil.LogErrorContext(r.Context(), h.logger, level, "request failed", err,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status)

	if status == http.StatusUnauthorized && r.Header.Get("Authorization") != "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authsvc"`)
	}
	writeJSON(w, status, errorResponse{Detail: publicMessage(err)})
}

// wrap adapts an appHandler and routes its error through writeError.
func (h *Handler) wrap(fn appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeError(w, r, err)
		}
	}
}
