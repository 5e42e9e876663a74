// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package config

import (
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if cfg.Detection.ThreatThreshold != 7.0 {
		t.Errorf("threat threshold = %v, want 7.0", cfg.Detection.ThreatThreshold)
	}
	if cfg.Detection.RecoveryTime != 60*time.Second {
		t.Errorf("recovery time = %v, want 60s", cfg.Detection.RecoveryTime)
	}
	if cfg.Detection.ScoreDecay != 0.90 {
		t.Errorf("score decay = %v, want 0.90", cfg.Detection.ScoreDecay)
	}
	if cfg.Classifier.RulePacketRate != 800 || cfg.Classifier.RuleByteRate != 10000 {
		t.Errorf("rule thresholds = %v/%v, want 800/10000",
			cfg.Classifier.RulePacketRate, cfg.Classifier.RuleByteRate)
	}
	if cfg.History.MaxAge < 30*24*time.Hour {
		t.Errorf("history retention %v must cover the monthly report window", cfg.History.MaxAge)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INTELLIGUARD_SERVER_PORT", "8081")
	t.Setenv("INTELLIGUARD_DETECTION_RECOVERY_TIME", "90s")
	t.Setenv("INTELLIGUARD_LOGGING_LEVEL", "debug")
	t.Setenv("INTELLIGUARD_CLASSIFIER_PROTOCOLS", "mqtt, coap ,udp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("server port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Detection.RecoveryTime != 90*time.Second {
		t.Errorf("recovery time = %v, want 90s", cfg.Detection.RecoveryTime)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"mqtt", "coap", "udp"}
	if len(cfg.Classifier.Protocols) != len(want) {
		t.Fatalf("protocols = %v, want %v", cfg.Classifier.Protocols, want)
	}
	for i, p := range want {
		if cfg.Classifier.Protocols[i] != p {
			t.Errorf("protocols[%d] = %q, want %q", i, cfg.Classifier.Protocols[i], p)
		}
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"INTELLIGUARD_SERVER_PORT":                 "server.port",
		"INTELLIGUARD_DETECTION_THREAT_THRESHOLD":  "detection.threat_threshold",
		"INTELLIGUARD_HISTORY_MAX_AGE":             "history.max_age",
		"INTELLIGUARD_CLASSIFIER_RULE_PACKET_RATE": "classifier.rule_packet_rate",
		"INTELLIGUARD_BROADCAST_SUBSCRIBER_BUFFER": "broadcast.subscriber_buffer",
	}
	for in, want := range cases {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"decay one", func(c *Config) { c.Detection.ScoreDecay = 1.0 }},
		{"negative decay", func(c *Config) { c.Detection.ScoreDecay = -0.1 }},
		{"zero threshold", func(c *Config) { c.Detection.ThreatThreshold = 0 }},
		{"zero recovery", func(c *Config) { c.Detection.RecoveryTime = 0 }},
		{"zero retention", func(c *Config) { c.History.MaxAge = 0 }},
		{"zero entries", func(c *Config) { c.History.MaxEntries = 0 }},
		{"zero subscriber buffer", func(c *Config) { c.Broadcast.SubscriberBuffer = 0 }},
		{"no protocols", func(c *Config) { c.Classifier.Protocols = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
