package asr

import "sync"

// frameQueue is the bounded outbound frame buffer between capture and
// the socket. When full, the incoming frame is the one discarded (never
// an already queued one), so capture proceeds undisturbed and the oldest
// audio still reaches the server first.
type frameQueue struct {
	mu      sync.Mutex
	frames  [][]byte
	max     int
	dropped uint64

	// notify wakes the drainer without blocking the producer.
	notify chan struct{}
}

func newFrameQueue(max int) *frameQueue {
	if max <= 0 {
		max = 20
	}
	return &frameQueue{
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

// push enqueues a frame, reporting false when the queue was full and the
// frame was dropped.
func (q *frameQueue) push(frame []byte) bool {
	q.mu.Lock()
	if len(q.frames) >= q.max {
		q.dropped++
		q.mu.Unlock()
		return false
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest frame.
func (q *frameQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *frameQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// clear empties the queue, e.g. after the connection is gone for good.
func (q *frameQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = nil
}
