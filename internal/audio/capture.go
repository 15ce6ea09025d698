package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DeviceError reports a capture-device acquisition or teardown failure.
// It is fatal to the current recording attempt but recoverable by
// retrying StartRecording once the underlying condition clears.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Source delivers blocks of raw float32 samples from a capture device.
// Implementations own the device handle; Start must not leave partially
// acquired resources behind on failure. The channel closes when the
// source stops or the context is cancelled.
type Source interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop() error
}

// ChanSource is a Source fed by another task through Write. It models a
// capture worklet running in its own execution context and handing
// samples over by message passing: the producer calls Write, the
// pipeline consumes the channel.
type ChanSource struct {
	mu      sync.Mutex
	ch      chan []float32
	started bool
	closed  bool
}

// NewChanSource creates a ChanSource with room for buffered hand-off of
// depth sample blocks.
func NewChanSource(depth int) *ChanSource {
	if depth <= 0 {
		depth = 8
	}
	return &ChanSource{ch: make(chan []float32, depth)}
}

// Start begins delivery. The returned channel closes on Stop.
func (s *ChanSource) Start(ctx context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &DeviceError{Op: "start", Err: errors.New("source already stopped")}
	}
	if s.started {
		return nil, &DeviceError{Op: "start", Err: errors.New("source already started")}
	}
	s.started = true
	return s.ch, nil
}

// Write hands a block of samples to the consumer. It blocks while the
// hand-off buffer is full and reports false once the source is stopped.
func (s *ChanSource) Write(samples []float32) (ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	ch := s.ch
	s.mu.Unlock()

	// A Write racing Stop can hit the closed channel; report the drop
	// instead of crashing the producer.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ch <- samples
	return true
}

// Stop closes the sample channel and releases the source. Idempotent.
func (s *ChanSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}
