// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package classify

import (
	"errors"
	"testing"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/models"
)

func testClassifierConfig() config.ClassifierConfig {
	return config.ClassifierConfig{
		RulePacketRate: 800,
		RuleByteRate:   10000,
		Protocols:      []string{"coap", "http", "mqtt", "udp"},
		DeviceTypes:    []string{"UnknownDevice", "SmartCam", "Thermostat"},
	}
}

func TestEncoderKnownAndFallback(t *testing.T) {
	e := NewEncoder([]string{"coap", "http", "mqtt"}, true)

	if got := e.Code("mqtt"); got != 2 {
		t.Errorf("Code(mqtt) = %v, want 2", got)
	}
	if got := e.Code("MQTT"); got != 2 {
		t.Errorf("case-insensitive Code(MQTT) = %v, want 2", got)
	}
	if got := e.Code("zwave"); got != 0 {
		t.Errorf("unseen category must encode to 0, got %v", got)
	}
	if got := e.Code(""); got != 0 {
		t.Errorf("empty category must encode to 0, got %v", got)
	}
}

func TestEncoderCaseSensitive(t *testing.T) {
	e := NewEncoder([]string{"UnknownDevice", "SmartCam"}, false)

	if got := e.Code("SmartCam"); got != 1 {
		t.Errorf("Code(SmartCam) = %v, want 1", got)
	}
	if got := e.Code("smartcam"); got != 0 {
		t.Errorf("case-sensitive match must fall back to 0, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testClassifierConfig())

	rec := models.TelemetryRecord{
		DeviceID:           "cam_01",
		DeviceType:         "SmartCam",
		Protocol:           "MQTT",
		PacketRate:         950,
		ByteRate:           12500,
		PacketSize:         512,
		ConnectionDuration: 3.5,
		SourcePort:         1883,
		DestinationPort:    8883,
	}

	fv, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := models.FeatureVector{
		PacketRate:         950,
		ByteRate:           12500,
		PacketSize:         512,
		ConnectionDuration: 3.5,
		ProtocolCode:       2, // mqtt
		DeviceTypeCode:     1, // SmartCam
		SourcePort:         1883,
		DestinationPort:    8883,
	}
	if fv != want {
		t.Errorf("Normalize = %+v, want %+v", fv, want)
	}
}

func TestNormalizeUnknownCategories(t *testing.T) {
	n := NewNormalizer(testClassifierConfig())

	fv, err := n.Normalize(models.TelemetryRecord{
		DeviceID:   "dev_1",
		DeviceType: "Teapot",
		Protocol:   "zigbee",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if fv.ProtocolCode != 0 || fv.DeviceTypeCode != 0 {
		t.Errorf("unseen categories must encode to 0, got proto=%v device=%v",
			fv.ProtocolCode, fv.DeviceTypeCode)
	}
}

func TestNormalizeMissingDeviceID(t *testing.T) {
	n := NewNormalizer(testClassifierConfig())

	_, err := n.Normalize(models.TelemetryRecord{Protocol: "mqtt"})
	if !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("err = %v, want ErrMissingDeviceID", err)
	}

	_, err = n.Normalize(models.TelemetryRecord{DeviceID: "   "})
	if !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("whitespace id: err = %v, want ErrMissingDeviceID", err)
	}
}
