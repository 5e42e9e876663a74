// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package report

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/intelliguard/intelliguard/internal/models"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func pkt(deviceID, protocol string, label models.Label, quarantined bool) models.ProcessedPacket {
	return models.ProcessedPacket{
		DeviceID:    deviceID,
		Protocol:    protocol,
		PacketRate:  100,
		Label:       label,
		Quarantined: quarantined,
	}
}

func TestBuildEmptyWindow(t *testing.T) {
	r := Build(nil, 3600, testNow)

	if r.TotalPackets != 0 || r.Attacks != 0 || r.Normal != 0 {
		t.Errorf("counts = %d/%d/%d, want zeros", r.TotalPackets, r.Attacks, r.Normal)
	}
	if r.AttackRatio != 0.0 {
		t.Errorf("empty window attack_ratio = %v, want 0.0", r.AttackRatio)
	}
	if len(r.QuarantinedDevices) != 0 || len(r.TopAttackDevices) != 0 {
		t.Errorf("empty window must have no devices: %+v", r)
	}
}

func TestBuildCountsAndRatio(t *testing.T) {
	packets := []models.ProcessedPacket{
		pkt("dev_1", "mqtt", models.LabelNormal, false),
		pkt("dev_1", "mqtt", models.LabelAttack, false),
		pkt("dev_2", "http", models.LabelAttack, true),
	}
	r := Build(packets, 86400, testNow)

	if r.TotalPackets != 3 || r.Attacks != 2 || r.Normal != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", r.TotalPackets, r.Attacks, r.Normal)
	}
	// 2/3 * 100 rounded to two decimals.
	if r.AttackRatio != 66.67 {
		t.Errorf("attack_ratio = %v, want 66.67", r.AttackRatio)
	}
	if !reflect.DeepEqual(r.QuarantinedDevices, []string{"dev_2"}) {
		t.Errorf("quarantined = %v, want [dev_2]", r.QuarantinedDevices)
	}
	if r.ProtocolDistribution["mqtt"] != 2 || r.ProtocolDistribution["http"] != 1 {
		t.Errorf("protocols = %v", r.ProtocolDistribution)
	}
}

func TestBuildQuarantinedDevicesSorted(t *testing.T) {
	packets := []models.ProcessedPacket{
		pkt("zeta", "mqtt", models.LabelAttack, true),
		pkt("alpha", "mqtt", models.LabelAttack, true),
		pkt("mid", "mqtt", models.LabelAttack, true),
	}
	r := Build(packets, 3600, testNow)
	if !reflect.DeepEqual(r.QuarantinedDevices, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("quarantined = %v, want sorted", r.QuarantinedDevices)
	}
}

func TestBuildEmptyProtocolCountedAsUnknown(t *testing.T) {
	r := Build([]models.ProcessedPacket{pkt("dev_1", "", models.LabelNormal, false)}, 3600, testNow)
	if r.ProtocolDistribution["unknown"] != 1 {
		t.Errorf("protocols = %v, want unknown:1", r.ProtocolDistribution)
	}
}

func TestTopAttackersRankingAndTies(t *testing.T) {
	var packets []models.ProcessedPacket
	// dev_b: 3 attacks, dev_a: 2, dev_c: 2 (dev_a encountered first),
	// dev_d..dev_g: 1 each.
	add := func(id string, n int) {
		for i := 0; i < n; i++ {
			packets = append(packets, pkt(id, "tcp", models.LabelAttack, false))
		}
	}
	add("dev_a", 2)
	add("dev_b", 3)
	add("dev_c", 2)
	add("dev_d", 1)
	add("dev_e", 1)
	add("dev_f", 1)
	add("dev_g", 1)

	r := Build(packets, 3600, testNow)

	if len(r.TopAttackDevices) != TopDevices {
		t.Fatalf("top list has %d entries, want %d", len(r.TopAttackDevices), TopDevices)
	}
	want := []DeviceAttacks{
		{DeviceID: "dev_b", Attacks: 3},
		{DeviceID: "dev_a", Attacks: 2},
		{DeviceID: "dev_c", Attacks: 2},
		{DeviceID: "dev_d", Attacks: 1},
		{DeviceID: "dev_e", Attacks: 1},
	}
	if !reflect.DeepEqual(r.TopAttackDevices, want) {
		t.Errorf("top attackers = %v, want %v", r.TopAttackDevices, want)
	}

	// Stable on re-query with identical input.
	again := Build(packets, 3600, testNow)
	if !reflect.DeepEqual(again.TopAttackDevices, r.TopAttackDevices) {
		t.Errorf("ranking not stable across identical queries")
	}
}

func TestBuildIntelRiskScore(t *testing.T) {
	packets := []models.ProcessedPacket{
		pkt("dev_1", "mqtt", models.LabelAttack, true),
		pkt("dev_1", "mqtt", models.LabelNormal, false),
		pkt("dev_2", "http", models.LabelNormal, false),
		pkt("dev_3", "udp", models.LabelNormal, true),
	}
	in := BuildIntel(packets, 3600, testNow)

	// base = 1/4*80 = 20, plus 2 quarantined devices * 5 = 30.
	if in.RiskScore != 30 {
		t.Errorf("risk_score = %d, want 30", in.RiskScore)
	}
	if in.TotalPackets != 4 || in.TotalAttacks != 1 {
		t.Errorf("totals = %d/%d, want 4/1", in.TotalPackets, in.TotalAttacks)
	}
}

func TestBuildIntelRiskScoreCapped(t *testing.T) {
	var packets []models.ProcessedPacket
	for i := 0; i < 30; i++ {
		packets = append(packets, pkt("dev_"+string(rune('a'+i)), "mqtt", models.LabelAttack, true))
	}
	in := BuildIntel(packets, 3600, testNow)
	// base 80 + 30*5 = 230, capped.
	if in.RiskScore != 100 {
		t.Errorf("risk_score = %d, want capped at 100", in.RiskScore)
	}
}

func TestBuildIntelAttackPatterns(t *testing.T) {
	p1 := pkt("dev_1", "mqtt", models.LabelAttack, false)
	p1.SimAttackType = "DoS"
	p2 := pkt("dev_2", "mqtt", models.LabelAttack, false)
	p2.SimAttackType = "DoS"
	p3 := pkt("dev_3", "mqtt", models.LabelAttack, false)
	p3.SimAttackType = "Exfiltration"
	// Attack packet without an advisory label is excluded from patterns.
	p4 := pkt("dev_4", "mqtt", models.LabelAttack, false)
	// Normal packet with a label contributes nothing either.
	p5 := pkt("dev_5", "mqtt", models.LabelNormal, false)
	p5.SimAttackType = "Spoofing"

	in := BuildIntel([]models.ProcessedPacket{p1, p2, p3, p4, p5}, 3600, testNow)

	want := map[string]int{"DoS": 2, "Exfiltration": 1}
	if !reflect.DeepEqual(in.AttackPatterns, want) {
		t.Errorf("attack_patterns = %v, want %v", in.AttackPatterns, want)
	}
}

func TestBuildIntelHighRateAnomalies(t *testing.T) {
	fast := pkt("dev_1", "udp", models.LabelNormal, false)
	fast.PacketRate = 1500
	edge := pkt("dev_2", "tcp", models.LabelNormal, false)
	edge.PacketRate = 1000 // threshold is strict >
	slow := pkt("dev_3", "mqtt", models.LabelNormal, false)

	in := BuildIntel([]models.ProcessedPacket{fast, edge, slow}, 3600, testNow)

	want := map[string]int{"udp": 1}
	if !reflect.DeepEqual(in.HighRateProtocolAnoms, want) {
		t.Errorf("high_rate_protocol_anomalies = %v, want %v", in.HighRateProtocolAnoms, want)
	}
}

func TestReportToCSV(t *testing.T) {
	packets := []models.ProcessedPacket{
		pkt("dev_1", "mqtt", models.LabelAttack, true),
		pkt("dev_1", "mqtt", models.LabelAttack, false),
		pkt("dev_2", "http", models.LabelNormal, false),
	}
	r := Build(packets, 86400, testNow)

	out, err := r.ToCSV()
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	wantLines := []string{
		"metric,value",
		"generated_at,2026-08-29T12:00:00",
		"window_seconds,86400",
		"total_packets,3",
		"normal,1",
		"attacks,2",
		"attack_ratio_percent,66.67",
		"quarantined_devices,dev_1",
		"protocol_http,1",
		"protocol_mqtt,2",
		"top_attack_device_1,dev_1 (2)",
	}
	if !reflect.DeepEqual(lines, wantLines) {
		t.Errorf("csv rows:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(wantLines, "\n"))
	}
}

func TestReportToCSVJoinsQuarantinedWithSemicolon(t *testing.T) {
	packets := []models.ProcessedPacket{
		pkt("dev_2", "mqtt", models.LabelAttack, true),
		pkt("dev_1", "mqtt", models.LabelAttack, true),
	}
	out, err := Build(packets, 3600, testNow).ToCSV()
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	if !strings.Contains(out, "quarantined_devices,dev_1;dev_2\n") {
		t.Errorf("csv missing semicolon-joined device list:\n%s", out)
	}
}
