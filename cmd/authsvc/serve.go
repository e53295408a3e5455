// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/memory"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/postgres"
	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
	"github.com/ian-yc-kim/tst-auth-svc/internal/identity"
	"github.com/ian-yc-kim/tst-auth-svc/internal/logging"
	"github.com/ian-yc-kim/tst-auth-svc/internal/mail"
	"github.com/ian-yc-kim/tst-auth-svc/internal/observability"
	"github.com/ian-yc-kim/tst-auth-svc/internal/store"
	"github.com/ian-yc-kim/tst-auth-svc/internal/web"
)

// openedStore is a ready auth.Store plus what serve needs to probe and
// release it.
type openedStore struct {
	store auth.Store
	ready observability.ReadinessChecker
	close func()
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the configured store.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config) (*openedStore, error)

	// Signals delivers shutdown signals.
	// Default: SIGINT and SIGTERM via signal.Notify
	Signals <-chan os.Signal

	// OnReady is called with the bound API and metrics addresses once both
	// listeners are up.
	OnReady func(apiAddr, metricsAddr string)
}

func newServeCmd(opts *rootOptions, deps *ServeDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the authentication HTTP API and, unless metrics_addr is empty, the
metrics and health probe listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd, deps)
		},
	}
}

// openStore connects to PostgreSQL or builds an in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.WarnContext(ctx, "using in-memory store; data is lost on exit")
		return &openedStore{store: memory.New(), close: func() {}}, nil
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, store.DefaultConnectOptions())
	if err != nil {
		return nil, err
	}
	return &openedStore{
		store: postgres.NewStore(pool),
		ready: pool.Ping,
		close: pool.Close,
	}, nil
}

// buildServices wires the domain services over st.
func buildServices(cfg *config.Config, st auth.Store) (web.Services, error) {
	notifier, err := mail.FromConfig(cfg.Mail)
	if err != nil {
		return web.Services{}, err
	}

	hasher := auth.NewArgon2idHasher()
	sessions, err := auth.NewSessionService(st, hasher,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithResetTTL(cfg.ResetTTL),
		auth.WithResetNotifier(notifier),
	)
	if err != nil {
		return web.Services{}, err
	}
	credentials, err := auth.NewCredentialService(st, hasher, sessions)
	if err != nil {
		return web.Services{}, err
	}
	oauth, err := auth.NewOAuthService(st, sessions, identity.NewGoogle(cfg.Google))
	if err != nil {
		return web.Services{}, err
	}
	if !cfg.Google.Complete() {
		slog.Warn("google oauth is not fully configured; google endpoints will fail")
	}

	return web.Services{Credentials: credentials, Sessions: sessions, OAuth: oauth}, nil
}

// runServe starts the API and observability servers and blocks until a
// signal arrives, ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}

	logging.SetDefault(serviceName, version, cfg.LogFormat, cfg.LogLevel)
	slog.Info("starting auth service",
		"addr", cfg.Addr(),
		"store", cfg.StoreDriver,
		"metrics_addr", cfg.MetricsAddr)

	opened, err := deps.StoreOpener(ctx, cfg)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("store", cfg.StoreDriver).Wrap(err)
	}
	defer opened.close()

	services, err := buildServices(cfg, opened.store)
	if err != nil {
		return oops.Code("SERVE_WIRING_FAILED").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, opened.ready)
		metrics = obsServer.Metrics()
	}

	handler, err := web.NewHandler(services, slog.Default(), metrics)
	if err != nil {
		return oops.Code("SERVE_WIRING_FAILED").Wrap(err)
	}

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_START_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	apiServer := web.NewServer(cfg.Addr(), handler.Routes())
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer, cfg)
		return oops.Code("SERVE_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	sigChan := deps.Signals
	if sigChan == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigChan = ch
	}

	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	cmd.Println("Auth service started on", apiServer.Addr())
	if deps.OnReady != nil {
		deps.OnReady(apiServer.Addr(), metricsAddr)
	}

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer, cfg)

	slog.Info("shutdown complete")
	return nil
}

func stopObservability(s *observability.Server, cfg *config.Config) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
