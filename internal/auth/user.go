// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits for user records.
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 255
	MinPasswordLength = 6
)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User. The password must already be hashed.
func NewUser(username, email, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks that a username is present and fits the column.
// Usernames are case-sensitive and stored exactly as given.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return validationError("username", "Username is required.")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return validationError("username", "Username must be at most 50 characters.")
	}
	return nil
}

// ValidateEmail checks that the value is a bare address like "a@b.example".
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("email", "Email is required.")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return validationError("email", "Email must be at most 255 characters.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return validationError("email", "Email is not a valid address.")
	}
	at := strings.LastIndexByte(email, '@')
	if !strings.Contains(email[at+1:], ".") {
		return validationError("email", "Email is not a valid address.")
	}
	return nil
}

// ValidatePassword enforces the minimum plaintext password length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationError("password", "Password must be at least 6 characters.")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrConflict when the
	// username or email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByIdentifier retrieves a user whose username or email equals identifier.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// ExistsByUsernameOrEmail reports whether any user holds the username or email.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// UpdatePassword overwrites the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
