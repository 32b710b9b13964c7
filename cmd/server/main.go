// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cbd-importer/internal/api"
	"github.com/tomtom215/cbd-importer/internal/auth"
	"github.com/tomtom215/cbd-importer/internal/config"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/supervisor"
	"github.com/tomtom215/cbd-importer/internal/supervisor/services"
	ws "github.com/tomtom215/cbd-importer/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("data_dir", cfg.Import.DataDir).
		Str("store", cfg.Store.Driver).
		Str("database", cfg.Store.Database).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats", cfg.Events.NATSEnabled).
		Msg("Starting CBD importer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	wsHub := ws.NewHub()
	tree.AddEventsService(services.NewHubService(wsHub))

	broadcaster := dataimport.Fanout{wsHub}
	var busState breakerStater
	publisher, err := initEventBus(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	if publisher != nil {
		broadcaster = append(broadcaster, publisher)
		busState = publisher
		tree.AddEventsService(services.NewPublisherService(publisher))
	}

	importer, err := initImport(cfg, broadcaster)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize importer")
	}
	defer importer.Close()

	importSvc := services.NewImportService(importer.coordinator, cfg.Import.AutoStart, cfg.Server.ShutdownTimeout)
	tree.AddImportService(importSvc)

	authMiddleware, err := initAuth(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}

	handler := api.NewHandler(cfg, importSvc, wsHub, readinessChecks(cfg, importer.connect, busState)...)
	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		// WriteTimeout would cut long-lived WebSocket connections.
		IdleTimeout: 60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("CBD importer stopped")
}

// initAuth builds the auth middleware for the configured mode.
func initAuth(cfg *config.SecurityConfig) (*auth.Middleware, error) {
	var jwtManager *auth.JWTManager
	switch cfg.AuthMode {
	case auth.AuthModeJWT:
		m, err := auth.NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		jwtManager = m
		logging.Info().Dur("token_ttl", cfg.TokenTTL).Msg("JWT authentication enabled")
	case auth.AuthModeNone:
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none). Anyone who can reach the server can wipe and reload the database.")
	}

	if cfg.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	for _, origin := range cfg.CORSOrigins {
		if origin == "*" && cfg.AuthMode != auth.AuthModeNone {
			logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*). Set explicit origins in production.")
			break
		}
	}

	return auth.NewMiddleware(jwtManager, cfg.AuthMode, api.AuthResponder), nil
}
