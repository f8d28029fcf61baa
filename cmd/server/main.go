// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package main runs the Tributary sync server.
//
// Startup order:
//
//  1. Configuration: .env, config.yaml and environment variables (koanf)
//  2. Database: DuckDB with the sync log and every source table
//  3. Connectors: one sync session per configured source
//  4. HTTP server: trigger, status, health and metrics routes
//  5. Scheduler: daily sync of every configured source (SCHEDULER_ENABLED)
//
// The HTTP server and the scheduler run under a suture supervisor tree.
// SIGINT or SIGTERM stops the tree; in-flight requests get the server
// timeout to drain.
//
// Minimal example:
//
//	export CRON_SECRET=$(openssl rand -hex 32)
//	export SHOPIFY_SHOP_DOMAIN=example.myshopify.com
//	export SHOPIFY_ACCESS_TOKEN=shpat_...
//	./tributary
//	curl -X POST -H "Authorization: Bearer $CRON_SECRET" localhost:8080/api/v1/sync/commerce
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tributary/internal/api"
	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/supervisor"
	"github.com/tomtom215/tributary/internal/supervisor/services"
	"github.com/tomtom215/tributary/internal/sync"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "tributary",
		Output:    os.Stderr,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Tributary stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Tributary")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	runners, err := sync.BuildRunners(cfg, sync.SessionDeps{
		Writer: database.NewWriter(db),
		Log:    db,
	})
	if err != nil {
		return err
	}
	coordinator := sync.NewCoordinator(sync.CoordinatorConfig{
		DailySources:  cfg.Sync.DailySourceKinds(),
		MaxConcurrent: cfg.Sync.MaxConcurrent,
	}, runners...)

	configured := coordinator.ConfiguredSources()
	if len(configured) == 0 {
		logging.Warn().Msg("No sources configured; every sync request will be skipped")
	}
	logging.Info().Interface("sources", configured).Msg("Connectors initialized")

	if cfg.Security.CronSecret == "" {
		logging.Warn().Bool("allow_anonymous", cfg.IsDevelopment()).Msg("CRON_SECRET is not set")
	}

	handler := api.NewHandler(coordinator, db, db, version)
	router := api.NewRouter(api.RouterConfig{
		Handler:        handler,
		Middleware:     api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)),
		CronSecret:     cfg.Security.CronSecret,
		AllowAnonymous: cfg.IsDevelopment(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      cfg.Server.Timeout, // sync requests hold the connection for the whole session
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	if cfg.Scheduler.Enabled {
		tree.AddSyncService(services.NewDailySchedulerService(coordinator, cfg.Scheduler))
		logging.Info().
			Dur("interval", cfg.Scheduler.Interval).
			Dur("initial_delay", cfg.Scheduler.InitialDelay).
			Msg("Daily scheduler enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := tree.Serve(ctx)
	if ctx.Err() != nil {
		// Stopped by signal; the tree reports that as an error.
		serveErr = nil
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}
