// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
	"github.com/ian-yc-kim/tst-auth-svc/internal/logging"
)

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired session and reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPrune(cmd, cfg, openStore)
		},
	}
}

func runPrune(cmd *cobra.Command, cfg *config.Config, open func(ctx context.Context, cfg *config.Config) (*openedStore, error)) error {
	logging.SetDefault(serviceName, version, cfg.LogFormat, cfg.LogLevel)

	ctx := cmd.Context()
	opened, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.close()

	sessions, err := auth.NewSessionService(opened.store, auth.NewArgon2idHasher())
	if err != nil {
		return err
	}
	n, err := sessions.PruneExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired token(s)\n", n)
	return nil
}
