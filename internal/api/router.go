// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intelliguard/intelliguard/internal/broadcast"
	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/detection"
	"github.com/intelliguard/intelliguard/internal/history"
	"github.com/intelliguard/intelliguard/internal/middleware"
)

// Handler owns the HTTP endpoints and their pipeline dependencies.
type Handler struct {
	cfg       config.APIConfig
	engine    *detection.Engine
	store     *history.Store
	hub       *broadcast.Hub
	startTime time.Time
}

// NewHandler wires the endpoints to the pipeline.
func NewHandler(cfg config.APIConfig, engine *detection.Engine, store *history.Store, hub *broadcast.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    engine,
		store:     store,
		hub:       hub,
		startTime: time.Now(),
	}
}

// Router builds the chi route tree. Ingestion and query routes carry
// separate rate limits; the stream routes skip the metrics wrapper so
// upgrades and long-lived responses pass through untouched.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion: high rate limit, one packet per request.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(h.cfg.IngestRateLimit, time.Minute))
			r.Use(middleware.PrometheusMetrics)
			r.Post("/packet", h.SubmitPacket)
			r.Post("/unquarantine", h.Unquarantine)
		})

		// Queries: report, intel, device snapshots.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(h.cfg.QueryRateLimit, time.Minute))
			r.Use(middleware.PrometheusMetrics)
			r.Get("/report/{period}", h.Report)
			r.Get("/intel/analyze", h.Intel)
			r.Get("/devices", h.Devices)
		})

		// Live streams: no metrics wrapper, no rate limit beyond the
		// connection itself.
		r.Get("/ws", h.WebSocket)
		r.Get("/stream", h.Stream)

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.HealthLive)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
