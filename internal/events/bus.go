// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package events carries quarantine transitions over an in-process message
// bus, decoupling the detection write path from alert delivery.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/intelliguard/intelliguard/internal/logging"
)

// TopicQuarantine carries one message per device quarantine transition.
const TopicQuarantine = "quarantine.alerts"

// QuarantineAlert is the bus payload for one quarantine transition.
type QuarantineAlert struct {
	DeviceID    string    `json:"device_id"`
	ThreatScore float64   `json:"threat_score"`
	At          time.Time `json:"at"`
}

// Bus is the in-process pub/sub fabric for alert messages.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the bus with a bounded per-subscriber output buffer.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, NewLoggerAdapter()),
	}
}

// PublishQuarantine emits one alert message. Implements the detection
// engine's alert sink. Publish failures are logged, never propagated: alert
// delivery must not fail the packet that triggered it.
func (b *Bus) PublishQuarantine(_ context.Context, deviceID string, score float64, at time.Time) {
	alert := QuarantineAlert{DeviceID: deviceID, ThreatScore: score, At: at}
	payload, err := json.Marshal(alert)
	if err != nil {
		logging.Error().Err(err).Str("device_id", deviceID).Msg("failed to encode quarantine alert")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicQuarantine, msg); err != nil {
		logging.Error().Err(err).Str("device_id", deviceID).Msg("failed to publish quarantine alert")
	}
}

// Subscribe returns the quarantine-alert message stream.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicQuarantine)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicQuarantine, err)
	}
	return msgs, nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DecodeAlert parses a bus message back into a QuarantineAlert.
func DecodeAlert(msg *message.Message) (QuarantineAlert, error) {
	var alert QuarantineAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		return QuarantineAlert{}, fmt.Errorf("decode quarantine alert %s: %w", msg.UUID, err)
	}
	return alert, nil
}
