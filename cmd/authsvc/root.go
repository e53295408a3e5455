// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
	"github.com/ian-yc-kim/tst-auth-svc/internal/xdg"
)

// serviceName is stamped on every log record.
const serviceName = "authsvc"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	envFile    string

	// environment replaces the process environment when non-nil.
	environment map[string]string
}

// loadConfig merges defaults, the config file, the environment and the
// flags set on cmd.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(o.loadOptions(cmd))
}

// loadOptions falls back to $XDG_CONFIG_HOME/authsvc/config.yaml when
// --config is not given.
func (o *rootOptions) loadOptions(cmd *cobra.Command) config.LoadOptions {
	configFile := o.configFile
	if configFile == "" {
		var getenv xdg.Getenv
		if o.environment != nil {
			getenv = func(key string) string { return o.environment[key] }
		}
		if found, err := xdg.FindConfigFile(getenv); err == nil {
			configFile = found
		}
	}
	return config.LoadOptions{
		ConfigFile:  configFile,
		DotEnvFile:  o.envFile,
		Environment: o.environment,
		Flags:       cmd.Flags(),
	}
}

// NewRootCmd creates the root command for the authsvc CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{}, nil)
}

func newRootCmd(opts *rootOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authsvc",
		Short: "Authentication service",
		Long: `authsvc registers users, verifies passwords, issues opaque session
tokens and runs the password reset and Google sign-in flows.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	config.RegisterFlags(flags)

	cmd.AddCommand(newServeCmd(opts, deps))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newPruneCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}
