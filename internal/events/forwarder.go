// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package events

import (
	"context"

	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/metrics"
)

// Forwarder consumes the quarantine-alert topic and dispatches each alert
// to every notifier. A failing notifier is logged and skipped; it never
// blocks the other channels or the bus. Implements suture.Service.
type Forwarder struct {
	bus       *Bus
	notifiers []Notifier
}

// NewForwarder creates the dispatch loop. Nil notifiers are ignored so
// callers can pass optional channels unconditionally.
func NewForwarder(bus *Bus, notifiers ...Notifier) *Forwarder {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Forwarder{bus: bus, notifiers: active}
}

// Serve consumes alerts until the context is cancelled or the bus closes.
func (f *Forwarder) Serve(ctx context.Context) error {
	msgs, err := f.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			alert, err := DecodeAlert(msg)
			if err != nil {
				logging.Error().Err(err).Msg("dropping undecodable quarantine alert")
				msg.Ack()
				continue
			}

			metrics.QuarantineAlerts.Inc()
			for _, n := range f.notifiers {
				if err := n.Send(ctx, alert); err != nil {
					logging.Error().
						Err(err).
						Str("notifier", n.Name()).
						Str("device_id", alert.DeviceID).
						Msg("quarantine alert delivery failed")
				}
			}
			msg.Ack()
		}
	}
}

func (f *Forwarder) String() string { return "alert-forwarder" }
