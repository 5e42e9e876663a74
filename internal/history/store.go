// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package history keeps the bounded in-memory packet window that backs the
// report and intel endpoints.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/metrics"
	"github.com/intelliguard/intelliguard/internal/models"
)

// Store is an append-only packet window ordered by arrival. Entries expire
// by age or by count, whichever bound is hit first; pruning happens inline
// on append when the count cap is exceeded and periodically in the sweeper
// for the age bound.
type Store struct {
	cfg config.HistoryConfig

	mu      sync.RWMutex
	packets []models.ProcessedPacket

	// now is injectable for retention tests.
	now func() time.Time
}

// NewStore creates an empty window with the given retention bounds.
func NewStore(cfg config.HistoryConfig) *Store {
	return &Store{
		cfg:     cfg,
		packets: make([]models.ProcessedPacket, 0, 1024),
		now:     time.Now,
	}
}

// Append records one accepted packet. Packets arrive in processing order;
// the window relies on Epoch being non-decreasing for pruning.
func (s *Store) Append(pkt models.ProcessedPacket) {
	s.mu.Lock()
	s.packets = append(s.packets, pkt)
	if s.cfg.MaxEntries > 0 && len(s.packets) > s.cfg.MaxEntries {
		excess := len(s.packets) - s.cfg.MaxEntries
		s.packets = s.drop(excess)
		metrics.HistoryPruned.Add(float64(excess))
	}
	size := len(s.packets)
	s.mu.Unlock()

	metrics.HistoryEntries.Set(float64(size))
}

// QueryWindow returns a copy of every packet whose epoch falls within the
// trailing window ending now. A non-positive window returns the whole
// retained history.
func (s *Store) QueryWindow(window time.Duration) []models.ProcessedPacket {
	cutoff := 0.0
	if window > 0 {
		cutoff = float64(s.now().Add(-window).UnixNano()) / float64(time.Second)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Packets are epoch-ordered, so binary search would do; a linear scan
	// from the tail stays simple and the window is bounded anyway.
	start := len(s.packets)
	for start > 0 && s.packets[start-1].Epoch >= cutoff {
		start--
	}

	out := make([]models.ProcessedPacket, len(s.packets)-start)
	copy(out, s.packets[start:])
	return out
}

// Len returns the current number of retained packets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packets)
}

// Prune removes entries older than the retention horizon and returns how
// many were dropped.
func (s *Store) Prune() int {
	if s.cfg.MaxAge <= 0 {
		return 0
	}
	cutoff := float64(s.now().Add(-s.cfg.MaxAge).UnixNano()) / float64(time.Second)

	s.mu.Lock()
	idx := 0
	for idx < len(s.packets) && s.packets[idx].Epoch < cutoff {
		idx++
	}
	if idx > 0 {
		s.packets = s.drop(idx)
	}
	size := len(s.packets)
	s.mu.Unlock()

	if idx > 0 {
		metrics.HistoryPruned.Add(float64(idx))
	}
	metrics.HistoryEntries.Set(float64(size))
	return idx
}

// drop removes the oldest n entries, reallocating so the backing array does
// not pin pruned packets. Caller holds the write lock.
func (s *Store) drop(n int) []models.ProcessedPacket {
	kept := make([]models.ProcessedPacket, len(s.packets)-n)
	copy(kept, s.packets[n:])
	return kept
}

// SetNow injects a clock for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// Sweeper runs the periodic age-based retention pass. It implements
// suture.Service via Serve.
type Sweeper struct {
	store    *Store
	interval time.Duration
}

// NewSweeper creates the retention sweeper for a store.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, interval: interval}
}

// Serve prunes on each tick until the context is cancelled.
func (w *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped := w.store.Prune(); dropped > 0 {
				logging.Debug().
					Int("dropped", dropped).
					Int("retained", w.store.Len()).
					Msg("history retention sweep")
			}
		}
	}
}

func (w *Sweeper) String() string { return "history-sweeper" }
