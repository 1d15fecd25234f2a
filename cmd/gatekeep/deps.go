// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gatekeep/gatekeep/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the account database.
	// Default: store.Connect with store.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, url string, logger *slog.Logger) (Database, error)

	// MigratorFactory opens a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (AutoMigrator, error)

	// RedisFactory opens the session and reset token store.
	// Default: authredis.Connect
	RedisFactory func(ctx context.Context, url string, logger *slog.Logger) (goredis.UniversalClient, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the HTTP listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// Database wraps the methods used from pgxpool.Pool.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator wraps the methods used from store.Migrator at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
