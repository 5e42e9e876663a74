// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package metrics provides Prometheus instrumentation for the detection
// pipeline, the live-stream hub, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics.
	PacketsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliguard_packets_processed_total",
			Help: "Total telemetry packets accepted by the pipeline, by classification label",
		},
		[]string{"label"},
	)

	PacketsBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_packets_blocked_total",
			Help: "Total packets rejected because the sending device was quarantined",
		},
	)

	PacketsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_packets_rejected_total",
			Help: "Total packets rejected by validation (missing device id)",
		},
	)

	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_anomalies_detected_total",
			Help: "Total packets flagged anomalous by the classifier",
		},
	)

	QuarantineTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliguard_quarantine_transitions_total",
			Help: "Quarantine state transitions by cause (threshold, auto_recovery, manual)",
		},
		[]string{"cause"},
	)

	QuarantinedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelliguard_quarantined_devices",
			Help: "Devices currently quarantined",
		},
	)

	TrackedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelliguard_tracked_devices",
			Help: "Distinct devices with pipeline state",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intelliguard_packet_processing_duration_seconds",
			Help:    "End-to-end per-packet pipeline processing time",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
	)

	// Classifier metrics.
	ClassifierFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_classifier_fallbacks_total",
			Help: "Packets classified by the rule fallback because the model predictor was unavailable",
		},
	)

	ClassifierBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelliguard_classifier_breaker_open",
			Help: "1 when the model predictor circuit breaker is open",
		},
	)

	// History window metrics.
	HistoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelliguard_history_entries",
			Help: "Packets currently held in the history window",
		},
	)

	HistoryPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_history_pruned_total",
			Help: "Packets removed from the history window by retention sweeps",
		},
	)

	// Broadcast hub metrics.
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelliguard_stream_subscribers",
			Help: "Currently connected live-stream subscribers",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_stream_dropped_total",
			Help: "Packets dropped from slow subscriber buffers (drop-oldest policy)",
		},
	)

	QuarantineAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelliguard_quarantine_alerts_total",
			Help: "Quarantine alerts published on the internal event bus",
		},
	)

	// API metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelliguard_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelliguard_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
