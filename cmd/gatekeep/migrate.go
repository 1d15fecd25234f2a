// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/store"
)

// Migrator is the schema management surface used by the CLI.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Applied() ([]uint, error)
	Close() error
}

// MigratorFactory opens a Migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL) //nolint:wrapcheck // store errors carry codes
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	return newMigrateCmd(opts, defaultMigratorFactory)
}

func newMigrateCmd(opts *globalOptions, factory MigratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account schema",
		Long:  `Apply, roll back and inspect the embedded PostgreSQL migrations.`,
	}
	cmd.PersistentFlags().String(config.FlagDatabaseURL, config.DefaultDatabaseURL, "PostgreSQL connection URL")

	withMigrator := func(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			databaseURL, err := getDatabaseURL(opts, cmd)
			if err != nil {
				return err
			}
			m, err := factory(databaseURL)
			if err != nil {
				return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
				}
			}()
			return fn(cmd, m, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			pending, err := m.Pending()
			if err != nil {
				return err //nolint:wrapcheck // store errors carry codes
			}
			if len(pending) == 0 {
				cmd.Println("No pending migrations")
				return nil
			}
			if err := m.Up(); err != nil {
				return err //nolint:wrapcheck // store errors carry codes
			}
			cmd.Printf("Applied %d migration(s)\n", len(pending))
			return nil
		}),
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations, dropping all account data",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return oops.Wrap(err)
			}
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all data; pass --yes to confirm")
			}
			if err := m.Down(); err != nil {
				return err //nolint:wrapcheck // store errors carry codes
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			return printStatus(cmd, m)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err //nolint:wrapcheck // store errors carry codes
			}
			cmd.Println(formatSchemaVersion(version, dirty))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Record VERSION as applied and clear the dirty flag. Use only after
repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err //nolint:wrapcheck // store errors carry codes
			}
			cmd.Printf("Forced schema version to %d\n", version)
			return nil
		}),
	})

	return cmd
}

func getDatabaseURL(opts *globalOptions, cmd *cobra.Command) (string, error) {
	cfg, err := opts.load(cmd)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").With("key", "database_url").Errorf("database_url is required")
	}
	return cfg.DatabaseURL, nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatSchemaVersion(version uint, dirty bool) string {
	if version == 0 {
		return "Schema version: none"
	}
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		name = "unknown"
	}
	out := fmt.Sprintf("Schema version: %d (%s)", version, name)
	if dirty {
		out += " DIRTY"
	}
	return out
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}
	applied, err := m.Applied()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}
	pending, err := m.Pending()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}

	cmd.Println(formatSchemaVersion(version, dirty))
	cmd.Printf("Applied: %d\n", len(applied))
	for _, v := range pending {
		name, _ := store.MigrationName(v) //nolint:errcheck // embedded FS read cannot fail at runtime
		cmd.Printf("  pending %s\n", name)
	}
	if len(pending) == 0 {
		cmd.Println("Up to date")
	}
	return nil
}
