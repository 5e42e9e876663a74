// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package events

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/logging"
)

// Notifier delivers one quarantine alert to an external or local channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert QuarantineAlert) error
}

// LogNotifier writes each alert to the structured log. Always enabled; it
// is the delivery channel of last resort.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Send(_ context.Context, alert QuarantineAlert) error {
	logging.Warn().
		Str("device_id", alert.DeviceID).
		Float64("threat_score", alert.ThreatScore).
		Time("at", alert.At).
		Msg("quarantine alert")
	return nil
}

// WebhookPayload is the JSON body POSTed to the webhook endpoint.
type WebhookPayload struct {
	Alert     QuarantineAlert `json:"alert"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// WebhookNotifier POSTs alerts to a configured endpoint, rate limited so a
// quarantine storm cannot flood the receiver.
type WebhookNotifier struct {
	url       string
	client    *http.Client
	rateLimit time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

// NewWebhookNotifier creates the webhook notifier. Returns nil when no URL
// is configured.
func NewWebhookNotifier(cfg config.AlertsConfig) *WebhookNotifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 500 * time.Millisecond
	}
	return &WebhookNotifier{
		url:       cfg.WebhookURL,
		client:    &http.Client{Timeout: timeout},
		rateLimit: rateLimit,
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Send delivers one alert, waiting out the rate limit if needed.
func (n *WebhookNotifier) Send(ctx context.Context, alert QuarantineAlert) error {
	n.mu.Lock()
	wait := n.rateLimit - time.Since(n.lastSent)
	n.lastSent = time.Now().Add(wait)
	n.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "quarantine_alert",
		Timestamp: time.Now().UTC(),
		Source:    "intelliguard",
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
