package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"echochamber/internal/sim"
)

// subscriberBuffer is how many encoded ticks a slow client may lag behind
// before ticks are dropped for it
const subscriberBuffer = 16

// Hub fans tick statistics out to websocket subscribers. It implements
// sim.Collector and never blocks the simulation: a full subscriber misses
// ticks instead.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	latest []byte
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[chan []byte]struct{}),
	}
}

// Collect implements sim.Collector
func (h *Hub) Collect(stats *sim.StepStats) error {
	msg, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding step %d: %w", stats.Step, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.logger.Debug("subscriber lagging, dropped tick", "step", stats.Step)
		}
	}
	return nil
}

// Subscribe registers a new listener. The latest tick, if any, is queued
// immediately. Call the returned function to unsubscribe.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.latest != nil {
		ch <- h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of connected listeners
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
