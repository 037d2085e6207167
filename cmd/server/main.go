// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Command server runs the authentication gateway: it loads the layered
// configuration, builds the pipeline snapshot, and serves the HTTP
// surface under a suture supervisor tree. SIGHUP reloads the
// configuration and hot-swaps a fresh pipeline; in-flight requests
// finish on the snapshot they started with.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authweaver/authweaver/internal/api"
	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/authz"
	"github.com/authweaver/authweaver/internal/blocklist"
	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
	"github.com/authweaver/authweaver/internal/supervisor"
	"github.com/authweaver/authweaver/internal/userstore"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("authweaver " + version)
		return
	}

	if err := run(*configPath); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("version", version).Msg("starting authweaver")

	store, err := buildUserStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("failed to close user store")
		}
	}()

	var lockout *blocklist.Lockout
	if cfg.Blocklist.Lockout.Enabled {
		lockout = blocklist.NewLockout(cfg.Blocklist.Lockout.MaxFailures, cfg.Blocklist.Lockout.Window)
	}
	block, err := blocklist.New(cfg.Blocklist.Users, cfg.Blocklist.IPs, lockout)
	if err != nil {
		return fmt.Errorf("build blocklist: %w", err)
	}

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{
		ModelPath:    cfg.Authz.ModelPath,
		PolicyPath:   cfg.Authz.PolicyPath,
		DefaultRole:  cfg.Authz.DefaultRole,
		CacheEnabled: cfg.Authz.CacheEnabled,
		CacheTTL:     cfg.Authz.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("build authz enforcer: %w", err)
	}

	auditStore := audit.NewMemoryStore(4096)
	bus := audit.NewBus()
	defer bus.Close()
	publisher, err := audit.NewTransportPublisher(&cfg.Audit.NATS, bus)
	if err != nil {
		return fmt.Errorf("build audit transport: %w", err)
	}
	auditLog := audit.NewLogger(auditStore, publisher, &audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		Topic:       cfg.Audit.Topic,
		LogToStdout: cfg.Audit.LogToStdout,
	})
	defer auditLog.Close()

	deps := authc.Dependencies{
		Store:            store,
		Blocklist:        block,
		Privileges:       enforcer,
		Audit:            auditLog,
		FailureListeners: []authc.FailureListener{block.OnAuthFailure},
	}

	processor, err := authc.NewProcessor(cfg.Authc, deps)
	if err != nil {
		return fmt.Errorf("build authentication pipeline: %w", err)
	}

	filter, err := api.NewAuthenticatingRestFilter(cfg.Server.TrustedProxies, block)
	if err != nil {
		return fmt.Errorf("build rest filter: %w", err)
	}
	filter.Swap(processor)
	logging.Info().Int("domains", len(processor.Domains())).Msg("authentication pipeline configured")

	handler := api.NewHandler(filter, enforcer, auditLog, auditStore)
	router := api.NewRouter(&cfg.Server, filter, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	if lockout != nil {
		tree.AddMaintenanceService(supervisor.NewMaintenanceService("lockout-janitor", time.Minute, func(ctx context.Context) error {
			if removed := lockout.CleanupStale(10 * cfg.Blocklist.Lockout.Window); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("lockout entries expired")
			}
			return nil
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			if err := reload(configPath, filter, deps, auditLog); err != nil {
				logging.Error().Err(err).Msg("configuration reload failed, keeping current pipeline")
			}
		}
	}()

	logging.Info().Str("addr", server.Addr).Msg("http server listening")
	errCh := tree.ServeBackground(ctx)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor tree: %w", err)
		}
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service missed shutdown deadline")
		}
	}

	logging.Info().Msg("authweaver stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// buildUserStore opens the configured store implementation and seeds
// the statically configured users.
func buildUserStore(cfg *config.Config) (userstore.Store, error) {
	var store userstore.Store
	switch cfg.UserStore.Type {
	case "", "memory":
		store = userstore.NewMemoryStore()
	case "badger":
		badgerStore, err := userstore.OpenBadger(cfg.UserStore.Path)
		if err != nil {
			return nil, fmt.Errorf("open badger user store: %w", err)
		}
		store = badgerStore
	default:
		return nil, fmt.Errorf("unknown user store type %q", cfg.UserStore.Type)
	}

	records := make([]userstore.Record, 0, len(cfg.UserStore.Users))
	for _, u := range cfg.UserStore.Users {
		records = append(records, userstore.Record{
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			Roles:        u.Roles,
			Attributes:   u.Attributes,
		})
	}
	if len(records) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := userstore.Seed(ctx, store, records); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed user store: %w", err)
		}
	}
	return store, nil
}
