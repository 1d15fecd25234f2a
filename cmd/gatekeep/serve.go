// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/api"
	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
	authredis "github.com/gatekeep/gatekeep/internal/auth/redis"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/notify"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/sessioncookie"
	"github.com/gatekeep/gatekeep/internal/store"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	redisMaxRetries   = 5
	redisBaseDelay    = 500 * time.Millisecond
)

// NewServeCmd creates the serve subcommand. A nil deps uses the defaults.
func NewServeCmd(opts *globalOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GraphQL server",
		Long: `Start the HTTP server exposing the GraphQL account API, plus the
metrics and health endpoints when metrics-addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
			opts := store.DefaultConnectOptions()
			opts.Logger = logger
			return store.Connect(ctx, url, opts) //nolint:wrapcheck // store errors carry codes
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url) //nolint:wrapcheck // store errors carry codes
		}
	}
	if out.RedisFactory == nil {
		out.RedisFactory = func(ctx context.Context, url string, logger *slog.Logger) (goredis.UniversalClient, error) {
			return authredis.Connect(ctx, url, redisMaxRetries, redisBaseDelay, logger) //nolint:wrapcheck // redis errors carry codes
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

// runServeWithDeps runs the server until ctx is cancelled, a signal
// arrives or a server fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // config errors carry codes
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "gatekeep",
		Version: version,
		Format:  cfg.LogFormat,
	})
	if err != nil {
		return oops.Code("LOGGING_SETUP_FAILED").Wrap(err)
	}

	logger.Info("starting gatekeep",
		"env", cfg.Env,
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := runAutoMigration(cfg.DatabaseURL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	rdb, err := deps.RedisFactory(ctx, cfg.RedisURL, logger)
	if err != nil {
		return oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
	}
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			logger.Debug("error closing redis client", "error", closeErr)
		}
	}()
	logger.Info("connected to redis")

	sessions := authredis.NewSessionStore(rdb, cfg.Session.TTL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, observability.AllReady(db.Ping, sessions.Ping), logger)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}
	if metrics == nil {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	defer func() {
		if obsServer == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}()

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}

	controller, err := auth.NewController(auth.ControllerConfig{
		Accounts: postgres.NewAccountRepository(db),
		Sessions: sessions,
		Resets:   authredis.NewResetTokenStore(rdb),
		Hasher:   auth.NewArgon2idHasher(),
		Notifier: notify.WithFailureHook(notifier, metrics.RecordNotificationFailure),
		Logger:   logger,
		ResetURL: cfg.Mail.ResetURL,
	})
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry codes
	}

	cookies, err := sessioncookie.New(sessioncookie.Options{
		Name:   cfg.Session.CookieName,
		Secret: []byte(cfg.Session.Secret),
		MaxAge: cfg.Session.CookieMaxAge,
		TTL:    cfg.Session.TTL,
		Secure: cfg.IsProduction(),
	})
	if err != nil {
		return err //nolint:wrapcheck // cookie errors carry codes
	}

	handler, err := api.NewHandler(api.Options{
		Auth:       controller,
		Cookies:    cookies,
		Metrics:    metrics,
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		return err //nolint:wrapcheck // api errors carry codes
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTPAddr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	httpErrChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
		close(httpErrChan)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("gatekeep listening on %s%s\n", listener.Addr(), api.Path)
	logger.Info("gatekeep ready", "addr", listener.Addr().String(), "path", api.Path)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-httpErrChan:
		if ok && err != nil {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogWarnContext(shutdownCtx, logger, "error stopping http server", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

// runAutoMigration applies pending migrations before the server starts.
func runAutoMigration(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	logger.Info("running database migrations")
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

// buildNotifier returns an SMTP notifier when a mail host is configured and
// a logging notifier otherwise.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
	if cfg.Mail.Host == "" {
		logger.Info("mail host not set, reset emails will be logged")
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Subject:  cfg.Mail.Subject,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // notify errors carry codes
	}
	return n, nil
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
