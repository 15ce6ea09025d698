// Package events provides the typed in-process publish/subscribe surface
// that the transport and audio layers publish to and that persistence and
// UI bridges subscribe to.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Category groups events by concern.
type Category string

const (
	CategoryConnection    Category = "connection"
	CategoryRecording     Category = "recording"
	CategoryTranscription Category = "transcription"
	CategoryError         Category = "error"
	CategorySession       Category = "session"
)

// Event is one published occurrence. Payload is one of the typed payload
// structs below, matching the category.
type Event struct {
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Alternative is one ranked recognition hypothesis.
type Alternative struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ConnectionPayload reports connection lifecycle and quality changes.
type ConnectionPayload struct {
	Status    string `json:"status"` // connecting, connected, disconnected, error
	Quality   string `json:"quality,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// RecordingPayload reports capture lifecycle changes.
type RecordingPayload struct {
	Status     string  `json:"status"` // started, paused, resumed, stopped, overflow, level
	AudioLevel float64 `json:"audio_level,omitempty"`
}

// TranscriptionPayload carries one partial or final recognition result.
type TranscriptionPayload struct {
	SegmentID    string        `json:"segment_id"`
	Text         string        `json:"text"`
	IsFinal      bool          `json:"is_final"`
	Confidence   *float64      `json:"confidence,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Duration     float64       `json:"duration,omitempty"`
}

// ErrorPayload surfaces a client or server-reported error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SessionPayload reports persistence-level session changes.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

const subscriberBuffer = 32

type subscriber struct {
	ch   chan Event
	cats map[Category]bool
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls behind its buffer loses events, counted in Dropped.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given categories (all categories if
// none given). The returned cancel func unsubscribes and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe(cats ...Category) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(cats) > 0 {
		sub.cats = make(map[Category]bool, len(cats))
		for _, c := range cats {
			sub.cats[c] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber.
func (b *Bus) Publish(cat Category, payload any) {
	ev := Event{Category: cat, Timestamp: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.cats != nil && !sub.cats[cat] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were lost to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
