// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package redis implements the session and reset token stores on Redis.
package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect parses redisURL, opens a client and pings it with exponential
// backoff. The caller owns the returned client.
func Connect(ctx context.Context, redisURL string, maxRetries uint64, baseDelay time.Duration, logger *slog.Logger) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("redis_url is required")
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(opts)
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewExponential(baseDelay)), func(ctx context.Context) error {
		attempt++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // connect error takes precedence
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("operation", "connect to redis").
			With("attempts", attempt).
			Wrap(err)
	}
	return client, nil
}
