// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Account is a registered user.
type Account struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates an Account with a fresh ID and both timestamps set to now.
// Input is expected to have passed ValidateRegistration.
func NewAccount(username, email, passwordHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsEmailIdentifier reports whether a login identifier should be matched
// against email rather than username.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns *DuplicateError when the username
	// or email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsernameOrEmail matches email when identifier contains "@",
	// username otherwise.
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*Account, error)

	// GetByEmail retrieves an account by email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// UpdatePassword replaces the password hash, refreshes UpdatedAt and
	// returns the updated account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) (*Account, error)
}
