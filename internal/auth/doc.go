// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package auth implements the credential and token lifecycle of the
// authentication service.
//
// # Domain Types
//
// User and Token should be created with their constructors (NewUser,
// NewToken), which validate fields before anything reaches a repository.
// Tokens are opaque: only a SHA-256 hash is stored, and the Kind column
// separates session tokens from password reset tokens.
//
// # Services
//
//   - CredentialService - registration and password login
//   - SessionService - issuing, validating, revoking and consuming tokens
//   - OAuthService - login through an external IdentityProvider
//
// Services receive a Store at construction; they hold no other shared state.
package auth
