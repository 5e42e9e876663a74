// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package broadcast fans processed packets out to live subscribers
// (websocket clients, SSE streams, alert forwarders). Slow subscribers
// lose their oldest buffered packets rather than stalling the pipeline
// or being disconnected.
package broadcast

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/metrics"
	"github.com/intelliguard/intelliguard/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Subscription is one live consumer of the packet stream. The channel from
// C is closed when the subscription is closed or the hub shuts down.
type Subscription struct {
	id  uint64
	ch  chan models.ProcessedPacket
	hub *Hub

	closeOnce sync.Once
}

// C returns the subscriber's packet channel.
func (s *Subscription) C() <-chan models.ProcessedPacket {
	return s.ch
}

// Close detaches the subscriber from the hub. Safe to call more than once
// and after hub shutdown.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub owns the subscriber set and the fan-out loop. Publish never blocks
// the caller: the inbound queue absorbs bursts, and a full queue drops the
// packet with a counted, throttled warning.
type Hub struct {
	cfg config.BroadcastConfig

	publish    chan models.ProcessedPacket
	register   chan *Subscription
	unregister chan *Subscription
	done       chan struct{}

	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	nextID      atomic.Uint64

	dropped atomic.Uint64
	dropLog rate.Sometimes
}

// NewHub creates a hub with the configured queue depths.
func NewHub(cfg config.BroadcastConfig) *Hub {
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = 256
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}
	return &Hub{
		cfg:         cfg,
		publish:     make(chan models.ProcessedPacket, cfg.PublishBuffer),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		done:        make(chan struct{}),
		subscribers: make(map[uint64]*Subscription),
		dropLog:     rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Subscribe attaches a new consumer. The returned subscription is nil if
// the hub has already shut down.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:  h.nextID.Add(1),
		ch:  make(chan models.ProcessedPacket, h.cfg.SubscriberBuffer),
		hub: h,
	}
	select {
	case h.register <- sub:
		return sub
	case <-h.done:
		return nil
	}
}

// Publish enqueues a packet for fan-out without blocking. Packets are
// dropped when the inbound queue is full.
func (h *Hub) Publish(pkt models.ProcessedPacket) {
	select {
	case h.publish <- pkt:
	case <-h.done:
	default:
		h.recordDrop(1)
	}
}

// SubscriberCount returns the number of attached consumers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total count of packets dropped for any subscriber
// or on the inbound queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Serve runs the fan-out loop until the context is cancelled. It uses
// priority-based selection so subscriber lifecycle is always settled
// before the next packet is delivered: shutdown first, then
// register/unregister, then fan-out. Designed for suture supervision.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: subscriber lifecycle.
		select {
		case sub := <-h.register:
			h.addSubscriber(sub)
			continue
		case sub := <-h.unregister:
			h.removeSubscriber(sub)
			continue
		default:
		}

		// Priority 3: fan-out, or wait for any event.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case sub := <-h.register:
			h.addSubscriber(sub)
		case sub := <-h.unregister:
			h.removeSubscriber(sub)
		case pkt := <-h.publish:
			h.fanOut(pkt)
		}
	}
}

func (h *Hub) String() string { return "broadcast-hub" }

func (h *Hub) addSubscriber(sub *Subscription) {
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	total := len(h.subscribers)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(total))
	logging.Info().Int("total_subscribers", total).Msg("stream subscriber attached")
}

func (h *Hub) removeSubscriber(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		close(sub.ch)
	}
	total := len(h.subscribers)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(total))
	logging.Info().Int("total_subscribers", total).Msg("stream subscriber detached")
}

// fanOut delivers one packet to every subscriber in id order. A subscriber
// with a full buffer loses its oldest packet instead of stalling delivery.
func (h *Hub) fanOut(pkt models.ProcessedPacket) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, sub := range subs {
		select {
		case sub.ch <- pkt:
			continue
		default:
		}
		// Buffer full: evict the oldest entry, then retry once. Only the
		// fan-out loop sends on sub.ch, so the retry cannot block.
		select {
		case <-sub.ch:
			h.recordDrop(1)
		default:
		}
		select {
		case sub.ch <- pkt:
		default:
			h.recordDrop(1)
		}
	}
}

func (h *Hub) recordDrop(n uint64) {
	total := h.dropped.Add(n)
	metrics.BroadcastDropped.Add(float64(n))

	h.dropLog.Do(func() {
		logging.Warn().
			Uint64("total_dropped", total).
			Msg("stream packets dropped for slow subscribers")
	})
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.subscribers)
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	h.mu.Unlock()
	close(h.done)

	metrics.Subscribers.Set(0)

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "broadcast-hub").
		Str("reason", string(reason)).
		Int("subscribers_closed", count).
		Msg("broadcast hub stopped")
}
