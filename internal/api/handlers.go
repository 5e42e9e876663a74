// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/intelliguard/intelliguard/internal/classify"
	"github.com/intelliguard/intelliguard/internal/detection"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/models"
	"github.com/intelliguard/intelliguard/internal/report"
	ws "github.com/intelliguard/intelliguard/internal/websocket"
)

// DefaultIntelWindow is the intel analysis window when none is given.
const DefaultIntelWindow = 3600 * time.Second

// maxBodySize bounds packet-submit request bodies.
const maxBodySize = 1 << 20

// reportPeriods maps the report path segment to its window.
var reportPeriods = map[string]time.Duration{
	"daily":   24 * time.Hour,
	"weekly":  7 * 24 * time.Hour,
	"monthly": 30 * 24 * time.Hour,
}

// BlockedResponse tells the submitter its packet was rejected by an active
// quarantine.
type BlockedResponse struct {
	Status string `json:"status"`
	Device string `json:"device"`
}

// UnquarantineRequest is the manual-unquarantine body.
type UnquarantineRequest struct {
	DeviceID string `json:"device_id"`
}

// SubmitPacket ingests one telemetry record and returns the annotated
// packet, or the blocked indicator when the device is quarantined.
func (h *Handler) SubmitPacket(w http.ResponseWriter, r *http.Request) {
	var rec models.TelemetryRecord
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("invalid packet body: %v", err))
		return
	}

	res, err := h.engine.Process(r.Context(), rec)
	if err != nil {
		if errors.Is(err, classify.ErrMissingDeviceID) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
			return
		}
		logging.Error().Err(err).Str("device_id", rec.DeviceID).Msg("packet processing failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if res.Blocked {
		respondJSON(w, http.StatusOK, BlockedResponse{Status: "blocked", Device: res.DeviceID})
		return
	}
	respondJSON(w, http.StatusOK, res.Packet)
}

// Unquarantine forces a device back to Active state.
func (h *Handler) Unquarantine(w http.ResponseWriter, r *http.Request) {
	var req UnquarantineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := h.engine.ForceUnquarantine(req.DeviceID); err != nil {
		if errors.Is(err, detection.ErrUnknownDevice) {
			respondError(w, r, http.StatusNotFound, ErrCodeDeviceNotFound,
				fmt.Sprintf("device %q not found", req.DeviceID))
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": req.DeviceID + " unquarantined",
	})
}

// Report serves the windowed summary for daily, weekly, or monthly
// periods, as JSON or as a downloadable metric-table CSV.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	period := strings.ToLower(chi.URLParam(r, "period"))
	window, ok := reportPeriods[period]
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("invalid period %q, want daily, weekly, or monthly", period))
		return
	}

	packets := h.store.QueryWindow(window)
	rep := report.Build(packets, int(window.Seconds()), time.Now())

	if strings.ToLower(r.URL.Query().Get("format")) == "csv" {
		text, err := rep.ToCSV()
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=intelliguard_%s_report.csv", period))
		_, _ = w.Write([]byte(text))
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

// Intel serves the threat-intelligence summary for an arbitrary window,
// defaulting to the last hour.
func (h *Handler) Intel(w http.ResponseWriter, r *http.Request) {
	window := DefaultIntelWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				fmt.Sprintf("invalid window %q, want positive seconds", raw))
			return
		}
		window = time.Duration(secs) * time.Second
	}

	packets := h.store.QueryWindow(window)
	respondJSON(w, http.StatusOK, report.BuildIntel(packets, int(window.Seconds()), time.Now()))
}

// Devices returns the state snapshot of every tracked device.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.DeviceStates())
}

// WebSocket upgrades to the live packet stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe()
	if sub == nil {
		_ = conn.Close()
		return
	}
	ws.NewClient(conn, sub).Start()
}

// Stream serves the live packet feed over server-sent events for consumers
// without websocket support.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"streaming unsupported by connection")
		return
	}

	sub := h.hub.Subscribe()
	if sub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeInternalError,
			"stream shutting down")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// The server-wide write timeout would cut the stream after one window.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logging.Error().Err(err).Msg("failed to clear stream write deadline")
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case pkt, open := <-sub.C():
			if !open {
				return
			}
			payload, err := json.Marshal(pkt)
			if err != nil {
				logging.Error().Err(err).Msg("failed to encode stream packet")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the pipeline is synchronous, so a running
// process is a ready process. Uptime is included for operators.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"subscribers":    h.hub.SubscriberCount(),
		"history_size":   h.store.Len(),
	})
}
