// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel error kinds. Services wrap these with oops codes and public
// messages; the HTTP layer maps them to status codes with errors.Is.
var (
	// ErrNotFound is returned by repositories when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness invariant would be violated.
	ErrConflict = errors.New("conflict")

	ErrValidation         = errors.New("validation failed")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrAccountNotLinked   = errors.New("account not linked")
	ErrInvalidIdentity    = errors.New("invalid identity")

	// ErrUpstream marks a failure in an external identity provider.
	ErrUpstream = errors.New("upstream failure")

	// ErrMisconfigured marks a request that cannot be served because the
	// service configuration is incomplete.
	ErrMisconfigured = errors.New("misconfigured")
)

// validationError builds a coded validation failure for a single field.
func validationError(field, message string) error {
	return oops.Code("AUTH_VALIDATION").
		With("field", field).
		Public(message).
		Wrap(ErrValidation)
}
