// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFile    string
}

// load reads configuration for cmd from the config file, the env file,
// the environment and cmd's flags.
func (g *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{ //nolint:wrapcheck // config errors carry codes
		File:    g.configFile,
		EnvFile: g.envFile,
		Flags:   cmd.Flags(),
	})
}

// NewRootCmd creates the root command for the gatekeep CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gatekeep",
		Short: "gatekeep - GraphQL account and session service",
		Long: `gatekeep serves account registration, login, logout and password
reset over GraphQL, with accounts in PostgreSQL and sessions in Redis.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCmd(opts, nil))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}
