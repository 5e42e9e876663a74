// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package detection implements the runtime threat pipeline: per-device
// exponentially-decayed threat scoring driven by classifier verdicts, and
// the Active/Quarantined state machine with timed auto-recovery.
package detection

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/intelliguard/intelliguard/internal/classify"
	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/metrics"
	"github.com/intelliguard/intelliguard/internal/models"
)

// ErrUnknownDevice is returned by ForceUnquarantine for a device that has
// never sent a packet.
var ErrUnknownDevice = errors.New("device not found")

// Appender receives every accepted packet for windowed reporting.
type Appender interface {
	Append(pkt models.ProcessedPacket)
}

// Broadcaster fans accepted packets out to live subscribers. Publish must
// not block the ingestion path.
type Broadcaster interface {
	Publish(pkt models.ProcessedPacket)
}

// AlertPublisher carries quarantine transitions to interested consumers.
type AlertPublisher interface {
	PublishQuarantine(ctx context.Context, deviceID string, score float64, at time.Time)
}

// Result is the outcome of submitting one telemetry record. Either Blocked
// is set (device quarantined, nothing scored or stored) or Packet carries
// the annotated record.
type Result struct {
	Blocked  bool
	DeviceID string
	Packet   *models.ProcessedPacket
}

// Engine is the ingestion write path. It owns all device state; per-device
// updates are serialized by the state entry's mutex while distinct devices
// never block each other.
type Engine struct {
	cfg        config.DetectionConfig
	normalizer *classify.Normalizer
	classifier classify.Classifier
	history    Appender
	stream     Broadcaster
	alerts     AlertPublisher
	states     *stateStore

	// now is injectable for tests of the recovery timer.
	now func() time.Time
}

// NewEngine wires the pipeline. history, stream, and alerts may be nil in
// tests; each stage is skipped when absent.
func NewEngine(
	cfg config.DetectionConfig,
	normalizer *classify.Normalizer,
	classifier classify.Classifier,
	history Appender,
	stream Broadcaster,
	alerts AlertPublisher,
) *Engine {
	return &Engine{
		cfg:        cfg,
		normalizer: normalizer,
		classifier: classifier,
		history:    history,
		stream:     stream,
		alerts:     alerts,
		states:     newStateStore(),
		now:        time.Now,
	}
}

// Process runs one telemetry record through the full pipeline: normalize,
// quarantine gate, classify, score, transition, then history append and
// broadcast. The only error is a missing device id; per-packet failures
// never touch other devices' state.
//
// The score decays multiplicatively once per processed packet, not per
// elapsed second. Devices that send slowly therefore decay slowly in
// wall-clock terms; this event-driven decay is the intended semantic.
func (e *Engine) Process(ctx context.Context, rec models.TelemetryRecord) (*Result, error) {
	start := time.Now()

	fv, err := e.normalizer.Normalize(rec)
	if err != nil {
		metrics.PacketsRejected.Inc()
		return nil, err
	}

	st := e.states.getOrCreate(rec.DeviceID)
	now := e.now()

	st.mu.Lock()
	st.lastSeen = now

	if st.quarantined {
		if now.Sub(st.lastQuarantined) > e.cfg.RecoveryTime {
			st.quarantined = false
			st.threatScore = 0
			metrics.QuarantineTransitions.WithLabelValues("auto_recovery").Inc()
			metrics.QuarantinedDevices.Dec()
			logging.Info().Str("device_id", rec.DeviceID).Msg("device auto-recovered from quarantine")
		} else {
			st.mu.Unlock()
			metrics.PacketsBlocked.Inc()
			logging.Debug().Str("device_id", rec.DeviceID).Msg("packet blocked, device quarantined")
			return &Result{Blocked: true, DeviceID: rec.DeviceID}, nil
		}
	}

	verdict := e.classifier.Classify(fv)

	increment := 0.0
	if verdict.Label == models.LabelAttack {
		increment += e.cfg.AttackIncrement
	}
	if verdict.Anomaly {
		increment += e.cfg.AnomalyIncrement
	}
	if fv.PacketRate > e.cfg.HighRatePacketRate || fv.ByteRate > e.cfg.HighRateByteRate {
		increment += e.cfg.HighRateIncrement
	}

	st.threatScore = st.threatScore*e.cfg.ScoreDecay + increment

	crossed := false
	if st.threatScore >= e.cfg.ThreatThreshold {
		st.quarantined = true
		st.lastQuarantined = now
		crossed = true
	}

	score := round2(st.threatScore)
	quarantined := st.quarantined
	st.mu.Unlock()

	pkt := models.ProcessedPacket{
		Timestamp:     now.Format(models.PacketTimeFormat),
		Epoch:         epoch(now),
		DeviceID:      rec.DeviceID,
		DeviceType:    rec.DeviceType,
		Protocol:      rec.Protocol,
		PacketRate:    fv.PacketRate,
		ByteRate:      fv.ByteRate,
		Label:         verdict.Label,
		Anomaly:       verdict.Anomaly,
		ThreatScore:   score,
		Quarantined:   quarantined,
		SimAttackType: rec.AttackType,
	}

	if crossed {
		metrics.QuarantineTransitions.WithLabelValues("threshold").Inc()
		metrics.QuarantinedDevices.Inc()
		logging.Warn().
			Str("device_id", rec.DeviceID).
			Float64("threat_score", score).
			Msg("device quarantined")
		if e.alerts != nil {
			e.alerts.PublishQuarantine(ctx, rec.DeviceID, score, now)
		}
	}

	metrics.PacketsProcessed.WithLabelValues(string(verdict.Label)).Inc()
	if verdict.Anomaly {
		metrics.AnomaliesDetected.Inc()
	}

	if e.history != nil {
		e.history.Append(pkt)
	}
	if e.stream != nil {
		e.stream.Publish(pkt)
	}

	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	return &Result{DeviceID: rec.DeviceID, Packet: &pkt}, nil
}

// ForceUnquarantine is the privileged operator override: back to Active with
// score reset, regardless of state or recovery timer. Unknown devices are
// reported, not created.
func (e *Engine) ForceUnquarantine(deviceID string) error {
	st := e.states.get(deviceID)
	if st == nil {
		return ErrUnknownDevice
	}

	st.mu.Lock()
	wasQuarantined := st.quarantined
	st.quarantined = false
	st.threatScore = 0
	st.lastQuarantined = time.Time{}
	st.mu.Unlock()

	if wasQuarantined {
		metrics.QuarantinedDevices.Dec()
		metrics.QuarantineTransitions.WithLabelValues("manual").Inc()
	}
	logging.Info().Str("device_id", deviceID).Msg("device manually unquarantined")
	return nil
}

// DeviceStates returns a snapshot of all tracked devices, sorted by id.
func (e *Engine) DeviceStates() []models.DeviceStateView {
	return e.states.snapshot()
}

// SetNow injects a clock for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// round2 rounds to two decimals for presentation snapshots.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// epoch converts a time to fractional unix seconds for window filtering.
func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
