// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package report computes aggregate statistics and threat intelligence over
// a packet-history window. Everything here is a pure function of the
// snapshot it is handed.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/intelliguard/intelliguard/internal/models"
)

// TopDevices is the cut-off for attacker rankings.
const TopDevices = 5

// HighRateThreshold marks a packet as a high-rate anomaly for intel.
const HighRateThreshold = 1000.0

// DeviceAttacks is one ranked entry in the top-attacker list.
type DeviceAttacks struct {
	DeviceID string `json:"device_id"`
	Attacks  int    `json:"attacks"`
}

// Report is the windowed summary served by the report endpoint.
type Report struct {
	GeneratedAt          string          `json:"generated_at"`
	WindowSeconds        int             `json:"window_seconds"`
	TotalPackets         int             `json:"total_packets"`
	Normal               int             `json:"normal"`
	Attacks              int             `json:"attacks"`
	AttackRatio          float64         `json:"attack_ratio"`
	QuarantinedDevices   []string        `json:"quarantined_devices"`
	ProtocolDistribution map[string]int  `json:"protocol_distribution"`
	TopAttackDevices     []DeviceAttacks `json:"top_attack_devices"`
}

// Intel is the windowed threat-intelligence summary.
type Intel struct {
	GeneratedAt           string         `json:"generated_at"`
	WindowSeconds         int            `json:"window_seconds"`
	RiskScore             int            `json:"risk_score"`
	TotalPackets          int            `json:"total_packets"`
	TotalAttacks          int            `json:"total_attacks"`
	HighRiskDevices       []string       `json:"high_risk_devices"`
	QuarantinedDevices    []string       `json:"quarantined_devices"`
	AttackPatterns        map[string]int `json:"attack_patterns"`
	HighRateProtocolAnoms map[string]int `json:"high_rate_protocol_anomalies"`
}

// Build computes the Report over a window snapshot. Top-attacker ties break
// toward the device first encountered in the window, so identical input
// yields an identical ranking.
func Build(packets []models.ProcessedPacket, windowSeconds int, now time.Time) Report {
	total := len(packets)
	attacks := 0
	normal := 0
	quarantined := map[string]struct{}{}
	protocols := map[string]int{}

	for _, p := range packets {
		switch p.Label {
		case models.LabelAttack:
			attacks++
		case models.LabelNormal:
			normal++
		}
		if p.Quarantined {
			quarantined[p.DeviceID] = struct{}{}
		}
		protocols[protocolKey(p.Protocol)]++
	}

	ratio := 0.0
	if total > 0 {
		ratio = math.Round(float64(attacks)/float64(total)*100*100) / 100
	}

	return Report{
		GeneratedAt:          now.Format("2006-01-02T15:04:05"),
		WindowSeconds:        windowSeconds,
		TotalPackets:         total,
		Normal:               normal,
		Attacks:              attacks,
		AttackRatio:          ratio,
		QuarantinedDevices:   sortedKeys(quarantined),
		ProtocolDistribution: protocols,
		TopAttackDevices:     topAttackers(packets),
	}
}

// BuildIntel computes the Intel summary over a window snapshot.
func BuildIntel(packets []models.ProcessedPacket, windowSeconds int, now time.Time) Intel {
	total := len(packets)
	quarantined := map[string]struct{}{}
	patterns := map[string]int{}
	highRate := map[string]int{}

	attacks := 0
	for _, p := range packets {
		if p.Quarantined {
			quarantined[p.DeviceID] = struct{}{}
		}
		if p.PacketRate > HighRateThreshold {
			highRate[protocolKey(p.Protocol)]++
		}
		if p.Label == models.LabelAttack {
			attacks++
			if p.SimAttackType != "" {
				patterns[p.SimAttackType]++
			}
		}
	}

	base := 0.0
	if total > 0 {
		base = float64(attacks) / float64(total) * 80
	}
	risk := int(math.Round(base + float64(len(quarantined))*5))
	if risk > 100 {
		risk = 100
	}

	ranked := topAttackers(packets)
	highRisk := make([]string, 0, len(ranked))
	for _, d := range ranked {
		highRisk = append(highRisk, d.DeviceID)
	}

	return Intel{
		GeneratedAt:           now.Format("2006-01-02T15:04:05"),
		WindowSeconds:         windowSeconds,
		RiskScore:             risk,
		TotalPackets:          total,
		TotalAttacks:          attacks,
		HighRiskDevices:       highRisk,
		QuarantinedDevices:    sortedKeys(quarantined),
		AttackPatterns:        patterns,
		HighRateProtocolAnoms: highRate,
	}
}

// ToCSV renders the report as the flat metric/value table consumed by
// spreadsheet tooling. Protocol rows are emitted in sorted-name order so
// the file is stable across runs.
func (r Report) ToCSV() (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"metric", "value"},
		{"generated_at", r.GeneratedAt},
		{"window_seconds", strconv.Itoa(r.WindowSeconds)},
		{"total_packets", strconv.Itoa(r.TotalPackets)},
		{"normal", strconv.Itoa(r.Normal)},
		{"attacks", strconv.Itoa(r.Attacks)},
		{"attack_ratio_percent", formatRatio(r.AttackRatio)},
		{"quarantined_devices", strings.Join(r.QuarantinedDevices, ";")},
	}

	protocols := make([]string, 0, len(r.ProtocolDistribution))
	for proto := range r.ProtocolDistribution {
		protocols = append(protocols, proto)
	}
	sort.Strings(protocols)
	for _, proto := range protocols {
		rows = append(rows, []string{
			"protocol_" + proto, strconv.Itoa(r.ProtocolDistribution[proto]),
		})
	}

	for i, dev := range r.TopAttackDevices {
		rows = append(rows, []string{
			fmt.Sprintf("top_attack_device_%d", i+1),
			fmt.Sprintf("%s (%d)", dev.DeviceID, dev.Attacks),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write report csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report csv: %w", err)
	}
	return buf.String(), nil
}

// topAttackers ranks devices by Attack-labeled packet count, descending,
// keeping at most TopDevices entries. Ties preserve first-encountered
// order within the window.
func topAttackers(packets []models.ProcessedPacket) []DeviceAttacks {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	order := 0

	for _, p := range packets {
		if p.Label != models.LabelAttack {
			continue
		}
		if _, ok := counts[p.DeviceID]; !ok {
			firstSeen[p.DeviceID] = order
			order++
		}
		counts[p.DeviceID]++
	}

	ranked := make([]DeviceAttacks, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, DeviceAttacks{DeviceID: id, Attacks: n})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Attacks != ranked[j].Attacks {
			return ranked[i].Attacks > ranked[j].Attacks
		}
		return firstSeen[ranked[i].DeviceID] < firstSeen[ranked[j].DeviceID]
	})

	if len(ranked) > TopDevices {
		ranked = ranked[:TopDevices]
	}
	return ranked
}

func protocolKey(proto string) string {
	if proto == "" {
		return "unknown"
	}
	return proto
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatRatio renders the percentage the way the JSON form does: a plain
// decimal with no trailing zeros beyond what the value needs.
func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
