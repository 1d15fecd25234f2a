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

const resetPrefix = "forget-password:"

// ResetTokenStore implements auth.ResetTokenStore. Tokens are stored hashed.
type ResetTokenStore struct {
	client goredis.Cmdable
}

var _ auth.ResetTokenStore = (*ResetTokenStore)(nil)

// NewResetTokenStore creates a ResetTokenStore.
func NewResetTokenStore(client goredis.Cmdable) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

func resetKey(token string) string {
	return resetPrefix + auth.HashKey(token)
}

// Put stores token for accountID with the given ttl.
func (s *ResetTokenStore) Put(ctx context.Context, token string, accountID ulid.ULID, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code("RESET_TTL_INVALID").With("ttl", ttl.String()).Errorf("reset token ttl must be positive")
	}
	if err := s.client.Set(ctx, resetKey(token), accountID.String(), ttl).Err(); err != nil {
		return oops.Code("RESET_STORE_FAILED").
			With("operation", "put reset token").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// Get resolves token without consuming it.
func (s *ResetTokenStore) Get(ctx context.Context, token string) (ulid.ULID, error) {
	val, err := s.client.Get(ctx, resetKey(token)).Result()
	if errors.Is(err, goredis.Nil) {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_STORE_FAILED").With("operation", "get reset token").Wrap(err)
	}
	return parseAccountID(val, "RESET_TOKEN_CORRUPT")
}

// Consume reads the token, its remaining ttl and deletes it inside one
// MULTI/EXEC block, so concurrent callers see at most one hit.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (auth.ResetGrant, error) {
	key := resetKey(token)

	var (
		get  *goredis.StringCmd
		pttl *goredis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if errors.Is(err, goredis.Nil) || (get != nil && errors.Is(get.Err(), goredis.Nil)) {
		return auth.ResetGrant{}, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.ResetGrant{}, oops.Code("RESET_CONSUME_FAILED").With("operation", "consume reset token").Wrap(err)
	}

	id, err := parseAccountID(get.Val(), "RESET_TOKEN_CORRUPT")
	if err != nil {
		return auth.ResetGrant{}, err
	}

	remaining := pttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return auth.ResetGrant{AccountID: id, Remaining: remaining}, nil
}
