// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package detection

import (
	"sort"
	"sync"
	"time"

	"github.com/intelliguard/intelliguard/internal/metrics"
	"github.com/intelliguard/intelliguard/internal/models"
)

// deviceState is the per-device pipeline state. Each entry carries its own
// mutex: score update and quarantine transition for one device form a single
// atomic step, while packets from different devices proceed independently.
type deviceState struct {
	mu              sync.Mutex
	threatScore     float64
	quarantined     bool
	lastSeen        time.Time
	lastQuarantined time.Time
}

// stateStore owns the device-state map. Absent keys are created explicitly
// with the default (Active, score 0) state on first packet; entries persist
// for the process lifetime.
type stateStore struct {
	mu      sync.RWMutex
	devices map[string]*deviceState
}

func newStateStore() *stateStore {
	return &stateStore{devices: make(map[string]*deviceState)}
}

// getOrCreate returns the device's state, creating the default entry on
// first sight.
func (s *stateStore) getOrCreate(deviceID string) *deviceState {
	s.mu.RLock()
	st, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.devices[deviceID]; ok {
		return st
	}
	st = &deviceState{}
	s.devices[deviceID] = st
	metrics.TrackedDevices.Set(float64(len(s.devices)))
	return st
}

// get returns the device's state, or nil if the device was never seen.
func (s *stateStore) get(deviceID string) *deviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[deviceID]
}

// snapshot returns read-only views of every tracked device, sorted by id.
func (s *stateStore) snapshot() []models.DeviceStateView {
	s.mu.RLock()
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	views := make([]models.DeviceStateView, 0, len(ids))
	for _, id := range ids {
		st := s.get(id)
		if st == nil {
			continue
		}
		st.mu.Lock()
		views = append(views, models.DeviceStateView{
			DeviceID:        id,
			ThreatScore:     round2(st.threatScore),
			Quarantined:     st.quarantined,
			LastSeen:        st.lastSeen,
			LastQuarantined: st.lastQuarantined,
		})
		st.mu.Unlock()
	}
	return views
}
