// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package models defines the wire and pipeline data types shared across
// IntelliGuard: raw telemetry records, feature vectors, classification
// results, and the processed packets stored in history and streamed to
// subscribers.
package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Numeric is a float64 that decodes permissively from JSON.
//
// Telemetry sources are not trusted to be well-formed: a field may arrive as
// a number, a quoted number, null, or garbage. Anything that cannot be read
// as a number coerces to 0 rather than failing the packet.
type Numeric float64

// UnmarshalJSON implements permissive numeric decoding.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Numeric(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = 0
		return nil
	}
	*n = Numeric(v)
	return nil
}

// MarshalJSON emits a plain JSON number.
func (n Numeric) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// Float64 returns the underlying value.
func (n Numeric) Float64() float64 { return float64(n) }

// TelemetryRecord is one raw per-device telemetry sample as pushed by a
// telemetry source. Immutable once received.
type TelemetryRecord struct {
	DeviceID           string  `json:"device_id"`
	DeviceType         string  `json:"device_type"`
	Protocol           string  `json:"protocol"`
	PacketRate         Numeric `json:"packet_rate"`
	ByteRate           Numeric `json:"byte_rate"`
	PacketSize         Numeric `json:"packet_size"`
	ConnectionDuration Numeric `json:"connection_duration"`
	SourcePort         Numeric `json:"source_port"`
	DestinationPort    Numeric `json:"destination_port"`

	// AttackType is the simulator-supplied advisory label. It is surfaced
	// in intel histograms but never consulted for scoring.
	AttackType string `json:"attack_type"`
}

// FeatureVector is the fixed-shape numeric input to classification.
// Field order matches the trained model's feature columns.
type FeatureVector struct {
	PacketRate         float64 `json:"packet_rate"`
	ByteRate           float64 `json:"byte_rate"`
	PacketSize         float64 `json:"packet_size"`
	ConnectionDuration float64 `json:"connection_duration"`
	ProtocolCode       float64 `json:"protocol_enc"`
	DeviceTypeCode     float64 `json:"device_type_enc"`
	SourcePort         float64 `json:"source_port"`
	DestinationPort    float64 `json:"destination_port"`
}

// Label is a classification verdict.
type Label string

const (
	LabelNormal Label = "Normal"
	LabelAttack Label = "Attack"
)

// ClassificationResult is the classifier output for one packet.
// Produced once per TelemetryRecord; never mutated.
type ClassificationResult struct {
	Label   Label `json:"label"`
	Anomaly bool  `json:"anomaly"`
}

// PacketTimeFormat renders sub-second timestamps so that rapid packets from
// the same device keep distinct labels on dashboard time axes.
const PacketTimeFormat = "15:04:05.000"

// ProcessedPacket is the annotated, immutable unit produced per accepted
// telemetry record. It is the record stored in history and delivered to
// live subscribers.
type ProcessedPacket struct {
	Timestamp  string  `json:"timestamp"`
	Epoch      float64 `json:"epoch"`
	DeviceID   string  `json:"device_id"`
	DeviceType string  `json:"device_type"`
	Protocol   string  `json:"protocol"`
	PacketRate float64 `json:"packet_rate"`
	ByteRate   float64 `json:"byte_rate"`

	Label   Label `json:"label"`
	Anomaly bool  `json:"anomaly"`

	// ThreatScore and Quarantined snapshot the device state at processing
	// time, rounded to two decimals for presentation parity.
	ThreatScore float64 `json:"threat_score"`
	Quarantined bool    `json:"quarantined"`

	SimAttackType string `json:"sim_attack_type"`
}

// ProcessedAt reconstructs the packet's processing time from its epoch.
func (p ProcessedPacket) ProcessedAt() time.Time {
	sec := int64(p.Epoch)
	nsec := int64((p.Epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// DeviceStateView is a read-only snapshot of one device's pipeline state.
type DeviceStateView struct {
	DeviceID        string    `json:"device_id"`
	ThreatScore     float64   `json:"threat_score"`
	Quarantined     bool      `json:"quarantined"`
	LastSeen        time.Time `json:"last_seen"`
	LastQuarantined time.Time `json:"last_quarantined,omitempty"`
}
