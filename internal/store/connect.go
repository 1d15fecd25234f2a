// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package store owns the PostgreSQL connection pool and the account schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls the start-up retry loop.
type ConnectOptions struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	Logger     *slog.Logger
}

// DefaultConnectOptions retries five times starting at half a second.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{MaxRetries: 5, BaseDelay: 500 * time.Millisecond}
}

// Connect opens a pgx pool and pings it, retrying with exponential
// backoff until the database answers or the retries run out.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var pool *pgxpool.Pool
	attempt := 0
	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return oops.With("attempt", attempt).Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
