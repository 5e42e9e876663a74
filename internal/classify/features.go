// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package classify converts raw telemetry into feature vectors and produces
// classification verdicts, either from a rule-based fallback or from an
// externally supplied model predictor guarded by a circuit breaker.
package classify

import (
	"errors"
	"strings"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/models"
)

// ErrMissingDeviceID rejects a record without a device identifier. All
// downstream state is keyed by device id, so this is the one field that
// cannot be coerced.
var ErrMissingDeviceID = errors.New("telemetry record missing device id")

// Encoder deterministically maps a category string to a numeric code: the
// index in the known class list, or 0 for an unseen category. Encoding is a
// total function; it never fails.
type Encoder struct {
	classes         []string
	caseInsensitive bool
}

// NewEncoder creates an encoder over the known class list.
func NewEncoder(classes []string, caseInsensitive bool) *Encoder {
	cp := make([]string, len(classes))
	copy(cp, classes)
	return &Encoder{classes: cp, caseInsensitive: caseInsensitive}
}

// Code returns the category's class index, or 0 as the fallback code.
func (e *Encoder) Code(category string) float64 {
	if e.caseInsensitive {
		category = strings.ToLower(category)
	}
	for i, c := range e.classes {
		if e.caseInsensitive {
			c = strings.ToLower(c)
		}
		if c == category {
			return float64(i)
		}
	}
	return 0
}

// Classes returns a copy of the known class list.
func (e *Encoder) Classes() []string {
	cp := make([]string, len(e.classes))
	copy(cp, e.classes)
	return cp
}

// Normalizer converts telemetry records into fixed-shape feature vectors.
type Normalizer struct {
	protocols   *Encoder
	deviceTypes *Encoder
}

// NewNormalizer creates a normalizer with the configured class vocabularies.
// Protocol matching is case-insensitive; device types match exactly, as the
// trained encoders do.
func NewNormalizer(cfg config.ClassifierConfig) *Normalizer {
	return &Normalizer{
		protocols:   NewEncoder(cfg.Protocols, true),
		deviceTypes: NewEncoder(cfg.DeviceTypes, false),
	}
}

// Normalize derives the feature vector for a record. Malformed numeric
// fields have already been coerced to 0 at decode time; the only failure is
// a missing device id.
func (n *Normalizer) Normalize(rec models.TelemetryRecord) (models.FeatureVector, error) {
	if strings.TrimSpace(rec.DeviceID) == "" {
		return models.FeatureVector{}, ErrMissingDeviceID
	}

	return models.FeatureVector{
		PacketRate:         rec.PacketRate.Float64(),
		ByteRate:           rec.ByteRate.Float64(),
		PacketSize:         rec.PacketSize.Float64(),
		ConnectionDuration: rec.ConnectionDuration.Float64(),
		ProtocolCode:       n.protocols.Code(rec.Protocol),
		DeviceTypeCode:     n.deviceTypes.Code(rec.DeviceType),
		SourcePort:         rec.SourcePort.Float64(),
		DestinationPort:    rec.DestinationPort.Float64(),
	}, nil
}
