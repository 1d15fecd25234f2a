// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

const sessionPrefix = "sess:"

// SessionStore implements auth.SessionStore. Keys are stored hashed.
type SessionStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore. A ttl of zero keeps sessions
// until they are destroyed.
func NewSessionStore(client goredis.Cmdable, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(key string) string {
	return sessionPrefix + auth.HashKey(key)
}

// Create issues a fresh session key for accountID.
func (s *SessionStore) Create(ctx context.Context, accountID ulid.ULID) (string, error) {
	key, err := auth.GenerateSessionKey()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(key), accountID.String(), s.ttl).Err(); err != nil {
		return "", oops.Code("SESSION_STORE_FAILED").
			With("operation", "create session").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return key, nil
}

// Get resolves key to its account.
func (s *SessionStore) Get(ctx context.Context, key string) (ulid.ULID, error) {
	val, err := s.client.Get(ctx, sessionKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return ulid.ULID{}, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("SESSION_STORE_FAILED").With("operation", "get session").Wrap(err)
	}
	return parseAccountID(val, "SESSION_CORRUPT")
}

// Destroy deletes key. Deleting an absent key succeeds.
func (s *SessionStore) Destroy(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionKey(key)).Err(); err != nil {
		return oops.Code("SESSION_STORE_FAILED").With("operation", "destroy session").Wrap(err)
	}
	return nil
}

// Ping reports whether Redis answers.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func parseAccountID(val, code string) (ulid.ULID, error) {
	id, err := ulid.Parse(val)
	if err != nil {
		return ulid.ULID{}, oops.Code(code).With("value", val).Wrap(err)
	}
	return id, nil
}
