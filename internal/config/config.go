// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package config defines IntelliGuard's layered configuration: built-in
// defaults, an optional YAML file, and INTELLIGUARD_* environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Detection  DetectionConfig  `koanf:"detection"`
	Classifier ClassifierConfig `koanf:"classifier"`
	History    HistoryConfig    `koanf:"history"`
	Broadcast  BroadcastConfig  `koanf:"broadcast"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DetectionConfig tunes the threat scoring engine and quarantine machine.
type DetectionConfig struct {
	// ThreatThreshold is the decayed score at which a device is quarantined.
	ThreatThreshold float64 `koanf:"threat_threshold"`

	// RecoveryTime is how long a quarantined device stays isolated before
	// auto-recovery.
	RecoveryTime time.Duration `koanf:"recovery_time"`

	// ScoreDecay is the multiplicative decay applied to the running score
	// once per processed packet (event-driven, not wall-clock).
	ScoreDecay float64 `koanf:"score_decay"`

	// Score increments per signal.
	AttackIncrement   float64 `koanf:"attack_increment"`
	AnomalyIncrement  float64 `koanf:"anomaly_increment"`
	HighRateIncrement float64 `koanf:"high_rate_increment"`

	// High-rate thresholds contributing the HighRateIncrement.
	HighRatePacketRate float64 `koanf:"high_rate_packet_rate"`
	HighRateByteRate   float64 `koanf:"high_rate_byte_rate"`
}

// ClassifierConfig configures the classifier adapter and encoders.
type ClassifierConfig struct {
	// Rule-based fallback thresholds.
	RulePacketRate float64 `koanf:"rule_packet_rate"`
	RuleByteRate   float64 `koanf:"rule_byte_rate"`

	// Known categorical classes for feature encoding. An unseen category
	// encodes to index 0.
	Protocols   []string `koanf:"protocols"`
	DeviceTypes []string `koanf:"device_types"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding a model-backed
// predictor.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	MaxRequests      uint32        `koanf:"max_requests"`
}

// HistoryConfig bounds the in-memory packet window.
type HistoryConfig struct {
	// MaxAge is the retention horizon; entries older than this are pruned.
	// Must cover the largest report window (monthly = 720h).
	MaxAge time.Duration `koanf:"max_age"`

	// MaxEntries caps the window size; oldest entries are pruned first.
	MaxEntries int `koanf:"max_entries"`

	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// BroadcastConfig tunes the live-stream hub.
type BroadcastConfig struct {
	// PublishBuffer is the hub's inbound queue depth.
	PublishBuffer int `koanf:"publish_buffer"`

	// SubscriberBuffer is the bounded per-subscriber buffer; the oldest
	// packet is dropped when a subscriber falls behind.
	SubscriberBuffer int `koanf:"subscriber_buffer"`
}

// AlertsConfig configures quarantine-alert delivery.
type AlertsConfig struct {
	// WebhookURL receives a JSON POST per quarantine transition. Empty
	// disables webhook delivery; alerts are still logged.
	WebhookURL string `koanf:"webhook_url"`

	// WebhookTimeout bounds each delivery attempt.
	WebhookTimeout time.Duration `koanf:"webhook_timeout"`

	// RateLimit is the minimum gap between webhook deliveries.
	RateLimit time.Duration `koanf:"rate_limit"`
}

// APIConfig tunes HTTP-surface behavior.
type APIConfig struct {
	// IngestRateLimit is requests/min allowed on the packet-submit route.
	IngestRateLimit int `koanf:"ingest_rate_limit"`

	// QueryRateLimit is requests/min allowed on report/intel routes.
	QueryRateLimit int `koanf:"query_rate_limit"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. Detection and
// classifier defaults are the fixed pipeline constants; class lists default
// to the known simulator vocabulary.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5000,
			Timeout: 30 * time.Second,
		},
		Detection: DetectionConfig{
			ThreatThreshold:    7.0,
			RecoveryTime:       60 * time.Second,
			ScoreDecay:         0.90,
			AttackIncrement:    3.0,
			AnomalyIncrement:   2.0,
			HighRateIncrement:  1.0,
			HighRatePacketRate: 900,
			HighRateByteRate:   12000,
		},
		Classifier: ClassifierConfig{
			RulePacketRate: 800,
			RuleByteRate:   10000,
			Protocols:      []string{"coap", "http", "mqtt", "tcp", "udp"},
			DeviceTypes: []string{
				"UnknownDevice", "DoorLock", "DoorSensor", "EnergyMeter",
				"FireAlarm", "IndustrialSensor", "Router", "SmartCam",
				"SmartLight", "SmartPlug", "Thermostat", "WeatherNode",
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				MaxRequests:      1,
			},
		},
		History: HistoryConfig{
			MaxAge:        720 * time.Hour, // covers the monthly report window
			MaxEntries:    1_000_000,
			SweepInterval: time.Minute,
		},
		Broadcast: BroadcastConfig{
			PublishBuffer:    256,
			SubscriberBuffer: 64,
		},
		Alerts: AlertsConfig{
			WebhookTimeout: 10 * time.Second,
			RateLimit:      500 * time.Millisecond,
		},
		API: APIConfig{
			IngestRateLimit: 6000,
			QueryRateLimit:  600,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Detection.ScoreDecay < 0 || c.Detection.ScoreDecay >= 1 {
		return fmt.Errorf("detection.score_decay %v must be in [0, 1)", c.Detection.ScoreDecay)
	}
	if c.Detection.ThreatThreshold <= 0 {
		return fmt.Errorf("detection.threat_threshold %v must be positive", c.Detection.ThreatThreshold)
	}
	if c.Detection.RecoveryTime <= 0 {
		return fmt.Errorf("detection.recovery_time %v must be positive", c.Detection.RecoveryTime)
	}
	if c.History.MaxAge <= 0 {
		return fmt.Errorf("history.max_age %v must be positive", c.History.MaxAge)
	}
	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("history.max_entries %d must be positive", c.History.MaxEntries)
	}
	if c.History.SweepInterval <= 0 {
		return fmt.Errorf("history.sweep_interval %v must be positive", c.History.SweepInterval)
	}
	if c.Broadcast.PublishBuffer <= 0 || c.Broadcast.SubscriberBuffer <= 0 {
		return fmt.Errorf("broadcast buffers must be positive (publish=%d subscriber=%d)",
			c.Broadcast.PublishBuffer, c.Broadcast.SubscriberBuffer)
	}
	if len(c.Classifier.Protocols) == 0 {
		return fmt.Errorf("classifier.protocols must not be empty")
	}
	if len(c.Classifier.DeviceTypes) == 0 {
		return fmt.Errorf("classifier.device_types must not be empty")
	}
	return nil
}
