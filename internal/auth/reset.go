// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32             // 32 bytes = 64 hex chars
	ResetTokenTTL   = 72 * time.Hour // 3 days
)

// DefaultResetURL prefixes the token in the emailed reset link.
const DefaultResetURL = "http://localhost:3000/change-password/"

// ResetGrant is the result of consuming a reset token.
type ResetGrant struct {
	AccountID ulid.ULID
	// Remaining is the token's TTL at the moment it was consumed.
	Remaining time.Duration
}

// ResetTokenStore holds one-time password reset tokens.
type ResetTokenStore interface {
	// Put stores token for accountID, expiring after ttl.
	Put(ctx context.Context, token string, accountID ulid.ULID, ttl time.Duration) error

	// Get resolves a token without consuming it. Returns ErrNotFound if absent or expired.
	Get(ctx context.Context, token string) (ulid.ULID, error)

	// Consume resolves and deletes a token in one atomic step. Of any number of
	// concurrent callers, at most one succeeds. Returns ErrNotFound if absent or expired.
	Consume(ctx context.Context, token string) (ResetGrant, error)
}

// GenerateResetToken creates a random reset token.
func GenerateResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// ResetEmailBody renders the HTML body of the reset email.
func ResetEmailBody(resetURL, token string) string {
	return fmt.Sprintf(`<a href="%s">reset password</a>`, html.EscapeString(resetURL+token))
}
