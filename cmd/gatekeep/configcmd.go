// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gatekeep/gatekeep/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration serve would use, after merging the config
file, environment and flags. Secrets and passwords are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redact())
			if err != nil {
				return oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
	config.RegisterFlags(printCmd.Flags())

	cmd.AddCommand(printCmd)
	return cmd
}
