// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package main is the entry point for the IntelliGuard server.
//
// IntelliGuard ingests IoT network telemetry, classifies each packet,
// maintains an exponentially decayed threat score per device, and
// quarantines devices whose score crosses the configured threshold.
// Quarantined devices recover automatically after the recovery window
// or can be released manually through the API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, INTELLIGUARD_* env overrides (Koanf v2)
//  2. Logging: global zerolog logger, plus an slog bridge for the supervisor
//  3. Pipeline: feature normalizer, classifier, history store, broadcast hub, alert bus
//  4. Detection engine: scoring and the quarantine state machine
//  5. HTTP API: chi router with ingest, query, and streaming routes
//  6. Supervisor tree: suture-managed hub, sweeper, alert forwarder, and HTTP server
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (INTELLIGUARD_SERVER_PORT, ...)
//   - Config file (config.yaml, path via CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes websocket and SSE subscribers through the hub
//   - Closes the alert bus
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelliguard/intelliguard/internal/api"
	"github.com/intelliguard/intelliguard/internal/broadcast"
	"github.com/intelliguard/intelliguard/internal/classify"
	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/detection"
	"github.com/intelliguard/intelliguard/internal/events"
	"github.com/intelliguard/intelliguard/internal/history"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Float64("threat_threshold", cfg.Detection.ThreatThreshold).
		Dur("recovery_time", cfg.Detection.RecoveryTime).
		Msg("Starting IntelliGuard")

	// Pipeline components.
	normalizer := classify.NewNormalizer(cfg.Classifier)
	classifier := classify.New(cfg.Classifier, nil)
	store := history.NewStore(cfg.History)
	hub := broadcast.NewHub(cfg.Broadcast)
	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert bus")
		}
	}()

	engine := detection.NewEngine(cfg.Detection, normalizer, classifier, store, hub, bus)
	handler := api.NewHandler(cfg.API, engine, store, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog into slog for the supervisor's event hook.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})

	// Pipeline layer services.
	tree.AddPipelineService(hub)
	tree.AddPipelineService(history.NewSweeper(store, cfg.History.SweepInterval))

	notifiers := []events.Notifier{events.LogNotifier{}}
	if webhook := events.NewWebhookNotifier(cfg.Alerts); webhook != nil {
		notifiers = append(notifiers, webhook)
		logging.Info().Str("url", cfg.Alerts.WebhookURL).Msg("Quarantine webhook enabled")
	}
	tree.AddPipelineService(events.NewForwarder(bus, notifiers...))

	// API layer service.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
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

	logging.Info().Msg("Application stopped gracefully")
}
