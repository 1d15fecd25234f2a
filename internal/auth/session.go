// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionKeyBytes is the entropy of a session key (64 hex chars).
const SessionKeyBytes = 32

// SessionStore holds login sessions keyed by an opaque session key.
type SessionStore interface {
	// Create issues a new session key bound to accountID.
	Create(ctx context.Context, accountID ulid.ULID) (string, error)

	// Get resolves a session key. Returns ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (ulid.ULID, error)

	// Destroy removes a session. Removing an absent session is not an error.
	Destroy(ctx context.Context, key string) error
}

// SessionHandle is the caller's client-held session, as seen by the transport.
type SessionHandle interface {
	// Key returns the session key presented by the client, or "".
	Key() string

	// Establish hands key to the client, replacing any previous one.
	Establish(key string) error

	// Clear removes the session from the client.
	Clear()
}

// GenerateSessionKey creates a random session key.
func GenerateSessionKey() (string, error) {
	b := make([]byte, SessionKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_KEY_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionKeyBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey computes the SHA256 of a session key or reset token. Stores index
// by this digest and never persist the raw value.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
