package runtime

import (
	"sync"
	"time"
)

// HandlerInfo describes one registered handler for diagnostics.
type HandlerInfo struct {
	Name            string        `json:"name"`
	SubscriptionURI string        `json:"subscription_uri"`
	PublishURI      string        `json:"publish_uri,omitempty"`
	Stats           *HandlerStats `json:"-"`
}

// HandlerStats accumulates processing counters for one handler.
type HandlerStats struct {
	mu sync.Mutex

	processed       uint64
	failed          uint64
	inFlight        uint64
	maxInFlight     uint64
	totalDuration   time.Duration
	lastDuration    time.Duration
	lastProcessedAt time.Time
	lastError       string
}

// HandlerStatsSnapshot is a point-in-time copy of HandlerStats.
type HandlerStatsSnapshot struct {
	MessagesProcessed uint64    `json:"messages_processed"`
	MessagesFailed    uint64    `json:"messages_failed"`
	InFlight          uint64    `json:"in_flight"`
	MaxInFlight       uint64    `json:"max_in_flight"`
	AverageNs         int64     `json:"average_ns"`
	LastNs            int64     `json:"last_ns"`
	LastProcessedAt   time.Time `json:"last_processed_at,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

// HandlerInfoSnapshot pairs a handler description with its counters.
type HandlerInfoSnapshot struct {
	Name            string               `json:"name"`
	SubscriptionURI string               `json:"subscription_uri"`
	PublishURI      string               `json:"publish_uri,omitempty"`
	Stats           HandlerStatsSnapshot `json:"stats"`
}

func (h *HandlerStats) onMessageStart() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
}

func (h *HandlerStats) onMessageFinish(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight > 0 {
		h.inFlight--
	}
	h.processed++
	if err != nil {
		h.failed++
		h.lastError = err.Error()
	}
	h.totalDuration += duration
	h.lastDuration = duration
	h.lastProcessedAt = time.Now().UTC()
}

// Snapshot copies the current counters.
func (h *HandlerStats) Snapshot() HandlerStatsSnapshot {
	if h == nil {
		return HandlerStatsSnapshot{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := HandlerStatsSnapshot{
		MessagesProcessed: h.processed,
		MessagesFailed:    h.failed,
		InFlight:          h.inFlight,
		MaxInFlight:       h.maxInFlight,
		LastNs:            int64(h.lastDuration),
		LastProcessedAt:   h.lastProcessedAt,
		LastError:         h.lastError,
	}
	if h.processed > 0 {
		snap.AverageNs = int64(h.totalDuration) / int64(h.processed)
	}
	return snap
}

// Handlers returns a snapshot of every registered handler in registration order.
func (s *Service) Handlers() []HandlerInfoSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HandlerInfoSnapshot, 0, len(s.handlers))
	for _, info := range s.handlers {
		out = append(out, HandlerInfoSnapshot{
			Name:            info.Name,
			SubscriptionURI: info.SubscriptionURI,
			PublishURI:      info.PublishURI,
			Stats:           info.Stats.Snapshot(),
		})
	}
	return out
}
