// Package asr implements the client-side streaming engine for a remote
// speech-recognition endpoint: connection lifecycle with heartbeat and
// backoff reconnect, a bounded outbound frame queue with backpressure,
// and the hybrid JSON/binary wire protocol.
package asr

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tekstiks/asrstream/internal/events"
)

var (
	// ErrDestroyed is returned by any call after Destroy.
	ErrDestroyed = errors.New("asr: client destroyed")
	// ErrNotConnected is returned by StartRecording without an open socket.
	ErrNotConnected = errors.New("asr: not connected")
	// ErrConnectTimeout is returned when the handshake exceeds the
	// configured connection timeout.
	ErrConnectTimeout = errors.New("asr: connection timeout")
	// ErrReconnectExhausted is surfaced on the client state after the
	// reconnect attempt limit; the caller must Connect explicitly to
	// resume.
	ErrReconnectExhausted = errors.New("asr: reconnect attempts exhausted")
)

// ConnQuality grades the connection for UI feedback.
type ConnQuality string

const (
	ConnExcellent    ConnQuality = "excellent"
	ConnGood         ConnQuality = "good"
	ConnPoor         ConnQuality = "poor"
	ConnDisconnected ConnQuality = "disconnected"
)

// Options configures a Client. Zero fields take the defaults below.
type Options struct {
	URL               string
	SampleRate        int           // default 16000
	FrameSize         int           // samples per frame, default 1024
	MaxQueueSize      int           // outbound frames, default 20
	ReconnectAttempts int           // default 5
	ReconnectDelay    time.Duration // backoff base, default 1s
	HeartbeatInterval time.Duration // default 30s
	ConnectTimeout    time.Duration // default 10s
	NBest             int           // alternatives requested, default 1
	SendPacing        time.Duration // delay between outbound frames, default 10ms
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.FrameSize <= 0 {
		o.FrameSize = 1024
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = 20
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.NBest <= 0 {
		o.NBest = 1
	}
	if o.SendPacing <= 0 {
		o.SendPacing = 10 * time.Millisecond
	}
	return o
}

// State is a snapshot of the externally visible client state.
type State struct {
	Connected   bool        `json:"is_connected"`
	Recording   bool        `json:"is_recording"`
	Paused      bool        `json:"is_paused"`
	Quality     ConnQuality `json:"connection_quality"`
	PartialText string      `json:"partial_text"`
	LastError   string      `json:"last_error,omitempty"`
	URL         string      `json:"ws_url"`
}

// FrameProducer is the capture side of a recording: acquired on
// StartRecording, released on StopRecording. Frames delivers encoded
// PCM16 frames and closes when the producer stops.
type FrameProducer interface {
	Start(ctx context.Context) error
	Frames() <-chan []byte
	Stop() error
}

// ProducerFunc builds a fresh FrameProducer for each recording; this is
// where the capture device gets acquired.
type ProducerFunc func(ctx context.Context) (FrameProducer, error)

// Client owns one socket connection, one capture producer, and one
// outbound queue. All state mutations are serialized behind a single
// mutex; callbacks from the read loop, heartbeat, queue drainer, and
// timers never touch state concurrently. Independent clients are fully
// independent.
type Client struct {
	opts        Options
	newProducer ProducerFunc
	bus         *events.Bus
	logger      *log.Logger

	mu             sync.Mutex
	state          State
	destroyed      bool
	connecting     bool
	conn           *websocket.Conn
	connGen        int
	attempt        int
	lastPong       time.Time
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	producer       FrameProducer
	pumpDone       chan struct{}
	senderStop     chan struct{}
	senderDone     chan struct{}
	senderRunning  bool

	queue *frameQueue

	writeMu sync.Mutex // serializes websocket writes
}

// New creates a client. The producer func is invoked on each
// StartRecording; the bus receives connection, recording, transcription
// and error events.
func New(opts Options, producer ProducerFunc, bus *events.Bus, logger *log.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("asr: endpoint URL required")
	}
	if producer == nil {
		return nil, errors.New("asr: frame producer required")
	}
	if bus == nil {
		return nil, errors.New("asr: event bus required")
	}
	opts = opts.withDefaults()
	return &Client{
		opts:        opts,
		newProducer: producer,
		bus:         bus,
		logger:      logger,
		queue:       newFrameQueue(opts.MaxQueueSize),
		state:       State{Quality: ConnDisconnected, URL: opts.URL},
	}, nil
}

// State returns a snapshot of the client state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DroppedFrames reports how many frames the queue discarded on overflow.
func (c *Client) DroppedFrames() uint64 {
	return c.queue.droppedCount()
}

// Connect opens the socket, sends the configuration message and starts
// the heartbeat. No-op when already connected; ErrDestroyed after
// Destroy; ErrConnectTimeout when the handshake exceeds the configured
// timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.state.Connected {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return errors.New("asr: connect already in progress")
	}
	c.connecting = true
	c.mu.Unlock()

	c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{Status: "connecting"})

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, nil)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrConnectTimeout
		}
		c.state.LastError = err.Error()
		c.state.Quality = ConnDisconnected
		c.mu.Unlock()
		c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{Status: "error"})
		c.bus.Publish(events.CategoryError, events.ErrorPayload{Message: err.Error()})
		return err
	}
	if c.destroyed {
		c.mu.Unlock()
		conn.Close()
		return ErrDestroyed
	}

	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.attempt = 0
	c.state.Connected = true
	c.state.Quality = ConnExcellent
	c.state.LastError = ""
	c.lastPong = time.Now()
	hbStop := make(chan struct{})
	c.heartbeatStop = hbStop
	if c.state.Recording && !c.senderRunning {
		// Recording survived a reconnect; resume draining.
		c.startSenderLocked()
	}
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	go c.heartbeat(hbStop)

	if err := c.writeControl(controlMessage{Event: eventConfig, NBest: c.opts.NBest}); err != nil {
		c.logger.Printf("asr: config send failed: %v", err)
	}

	c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{
		Status:    "connected",
		Quality:   string(ConnExcellent),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	return nil
}

// Disconnect closes the socket intentionally: normal closure code, all
// timers cancelled, reconnect counter cleared.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.cancelTimersLocked()
	conn := c.conn
	c.conn = nil
	c.attempt = 0
	c.state.Connected = false
	c.state.Quality = ConnDisconnected
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
	}
	c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{Status: "disconnected"})
}

// Destroy is idempotent: stops any recording, disconnects, cancels every
// timer and permanently disables Connect.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	recording := c.state.Recording
	c.mu.Unlock()

	if recording {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = c.StopRecording(ctx)
		cancel()
	}
	c.Disconnect()
	c.queue.clear()
}

// StartRecording acquires the capture producer and begins queueing its
// frames for transmission. Fails with ErrNotConnected while the socket
// is closed; no-op when already recording. Device failures surface
// synchronously.
func (c *Client) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if !c.state.Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.state.Recording {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	producer, err := c.newProducer(ctx)
	if err == nil {
		err = producer.Start(ctx)
	}
	if err != nil {
		c.mu.Lock()
		c.state.LastError = err.Error()
		c.mu.Unlock()
		c.bus.Publish(events.CategoryError, events.ErrorPayload{Message: err.Error()})
		return err
	}

	c.mu.Lock()
	if c.destroyed || !c.state.Connected {
		destroyed := c.destroyed
		c.mu.Unlock()
		_ = producer.Stop()
		if destroyed {
			return ErrDestroyed
		}
		return ErrNotConnected
	}
	c.producer = producer
	c.state.Recording = true
	c.state.Paused = false
	c.state.LastError = ""
	pumpDone := make(chan struct{})
	c.pumpDone = pumpDone
	if !c.senderRunning {
		c.startSenderLocked()
	}
	c.mu.Unlock()

	go c.pump(producer, pumpDone)
	c.bus.Publish(events.CategoryRecording, events.RecordingPayload{Status: "started"})
	return nil
}

// PauseRecording suspends frame generation without tearing down the
// socket or device. Captured frames are discarded before the queue.
func (c *Client) PauseRecording() {
	c.mu.Lock()
	if !c.state.Recording || c.state.Paused {
		c.mu.Unlock()
		return
	}
	c.state.Paused = true
	c.mu.Unlock()
	c.bus.Publish(events.CategoryRecording, events.RecordingPayload{Status: "paused"})
}

// ResumeRecording resumes frame delivery after a pause.
func (c *Client) ResumeRecording() {
	c.mu.Lock()
	if !c.state.Recording || !c.state.Paused {
		c.mu.Unlock()
		return
	}
	c.state.Paused = false
	c.mu.Unlock()
	c.bus.Publish(events.CategoryRecording, events.RecordingPayload{Status: "resumed"})
}

// StopRecording halts capture, releases the device, flushes the queue
// (until empty or the socket closes) and sends the end-of-stream
// message. Always leaves Recording and Paused false.
func (c *Client) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.Recording {
		c.mu.Unlock()
		return nil
	}
	producer := c.producer
	c.producer = nil
	pumpDone := c.pumpDone
	c.pumpDone = nil
	c.state.Recording = false
	c.state.Paused = false
	c.mu.Unlock()

	var stopErr error
	if producer != nil {
		stopErr = producer.Stop()
	}
	if pumpDone != nil {
		<-pumpDone
	}
	c.flush(ctx)

	c.mu.Lock()
	senderStop, senderDone := c.senderStop, c.senderDone
	c.senderStop, c.senderDone = nil, nil
	c.mu.Unlock()
	if senderStop != nil {
		close(senderStop)
		<-senderDone
	}

	if err := c.writeControl(controlMessage{Event: eventEnd}); err != nil && !errors.Is(err, ErrNotConnected) {
		c.logger.Printf("asr: end send failed: %v", err)
	}

	c.bus.Publish(events.CategoryRecording, events.RecordingPayload{Status: "stopped"})
	return stopErr
}

// Flush asks the server to emit results for audio buffered so far.
func (c *Client) Flush() error {
	return c.writeControl(controlMessage{Event: eventFlush})
}

// Reset asks the server to discard its current recognition state.
func (c *Client) Reset() error {
	return c.writeControl(controlMessage{Event: eventReset})
}

// pump moves produced frames into the outbound queue. Paused frames are
// discarded before the queue; a full queue drops the newest frame and
// emits an overflow signal while capture continues undisturbed.
func (c *Client) pump(p FrameProducer, done chan struct{}) {
	defer close(done)
	for frame := range p.Frames() {
		c.mu.Lock()
		paused := c.state.Paused
		c.mu.Unlock()
		if paused {
			continue
		}
		if !c.queue.push(frame) {
			c.logger.Printf("asr: outbound queue full, dropping frame")
			c.bus.Publish(events.CategoryRecording, events.RecordingPayload{Status: "overflow"})
		}
	}
}

func (c *Client) startSenderLocked() {
	stop := make(chan struct{})
	done := make(chan struct{})
	c.senderStop, c.senderDone = stop, done
	c.senderRunning = true
	go func() {
		defer close(done)
		c.sender(stop)
		c.mu.Lock()
		c.senderRunning = false
		// A reconnect that completed while this sender was unwinding
		// from a write failure saw senderRunning still set and skipped
		// the restart. senderStop == stop means no stop or replacement
		// happened in between, so the recording has no drainer.
		if c.state.Recording && c.state.Connected && c.senderStop == stop {
			c.startSenderLocked()
		}
		c.mu.Unlock()
	}()
}

// sender is the single-flight queue drainer: frames leave in FIFO order
// with a short pacing delay between them so the transport is never
// saturated by a burst.
func (c *Client) sender(stop chan struct{}) {
	for {
		frame, ok := c.queue.pop()
		if !ok {
			select {
			case <-stop:
				return
			case <-c.queue.notify:
				continue
			}
		}
		if err := c.writeBinary(frame); err != nil {
			if !errors.Is(err, ErrNotConnected) {
				c.logger.Printf("asr: frame send failed: %v", err)
			}
			c.queue.clear()
			return
		}
		select {
		case <-stop:
			return
		case <-time.After(c.opts.SendPacing):
		}
	}
}

// flush blocks until the queue is drained, the socket closes, or the
// context expires.
func (c *Client) flush(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		connected := c.state.Connected
		c.mu.Unlock()
		if c.queue.len() == 0 || !connected {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readLoop consumes inbound messages for one connection generation.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(conn, gen, err)
			return
		}
		c.handleMessage(data)
	}
}

// handleClosed handles an unexpected connection loss. Intentional
// disconnects already detached the connection, so a stale generation
// returns without scheduling anything.
func (c *Client) handleClosed(conn *websocket.Conn, gen int, err error) {
	c.mu.Lock()
	if c.connGen != gen || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state.Connected = false
	c.state.Quality = ConnDisconnected
	destroyed := c.destroyed
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.mu.Unlock()
	conn.Close()

	c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{Status: "disconnected"})

	if destroyed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return
	}
	c.logger.Printf("asr: connection lost: %v", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt, or
// surfaces ErrReconnectExhausted once the limit is reached.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	if c.attempt >= c.opts.ReconnectAttempts {
		c.state.LastError = ErrReconnectExhausted.Error()
		c.mu.Unlock()
		c.bus.Publish(events.CategoryError, events.ErrorPayload{Message: ErrReconnectExhausted.Error()})
		return
	}
	delay := reconnectDelay(c.attempt, c.opts.ReconnectDelay)
	c.attempt++
	attempt := c.attempt
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			if errors.Is(err, ErrDestroyed) {
				return
			}
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
	c.logger.Printf("asr: reconnect attempt %d in %s", attempt, delay)
}

// reconnectDelay computes min(base * 2^attempt, 30s).
func reconnectDelay(attempt int, base time.Duration) time.Duration {
	const ceiling = 30 * time.Second
	if attempt > 20 {
		return ceiling
	}
	d := base << uint(attempt)
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// heartbeat pings on a fixed interval. A pong overdue by more than twice
// the interval degrades quality to poor; this is advisory and never
// forces a disconnect on its own.
func (c *Client) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			if err := c.writeControl(controlMessage{Event: eventPing, Timestamp: now.UnixMilli()}); err != nil {
				return
			}
			c.mu.Lock()
			stale := now.Sub(c.lastPong) > 2*c.opts.HeartbeatInterval
			if stale && c.state.Connected {
				c.state.Quality = ConnPoor
			}
			c.mu.Unlock()
			if stale {
				c.logger.Printf("asr: heartbeat overdue, connection may be dead")
				c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{
					Status:  "connected",
					Quality: string(ConnPoor),
				})
			}
		}
	}
}

// handleMessage decodes one inbound message. Malformed payloads are
// logged and dropped; they never take down the receive path.
func (c *Client) handleMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Printf("asr: dropping malformed message: %v", err)
		return
	}

	switch msg.Event {
	case eventPong:
		c.handlePong(&msg)
		return
	case eventPing:
		// Server-initiated liveness probe; echo the timestamp back.
		if err := c.writeControl(controlMessage{Event: eventPong, Timestamp: msg.Timestamp}); err != nil {
			c.logger.Printf("asr: pong send failed: %v", err)
		}
		return
	}

	if msg.Error != "" {
		c.mu.Lock()
		c.state.LastError = msg.Error
		c.mu.Unlock()
		c.bus.Publish(events.CategoryError, events.ErrorPayload{Message: msg.Error})
		return
	}

	if msg.IsFinal {
		c.mu.Lock()
		c.state.PartialText = ""
		c.mu.Unlock()

		payload := events.TranscriptionPayload{
			SegmentID:    uuid.NewString(),
			Text:         msg.bestText(),
			IsFinal:      true,
			Duration:     msg.Duration,
			Alternatives: toEventAlternatives(msg.Alternatives),
		}
		if len(msg.Alternatives) > 0 {
			payload.Confidence = msg.Alternatives[0].Confidence
		}
		c.bus.Publish(events.CategoryTranscription, payload)
		return
	}

	c.mu.Lock()
	c.state.PartialText = msg.Text
	c.mu.Unlock()
	c.bus.Publish(events.CategoryTranscription, events.TranscriptionPayload{
		SegmentID: uuid.NewString(),
		Text:      msg.Text,
		IsFinal:   false,
	})
}

// handlePong updates liveness bookkeeping and grades quality by the
// round trip of the most recent ping.
func (c *Client) handlePong(msg *serverMessage) {
	now := time.Now()
	var latency int64
	if msg.Timestamp > 0 {
		latency = now.UnixMilli() - msg.Timestamp
	}

	quality := ConnExcellent
	switch {
	case latency >= 1000:
		quality = ConnPoor
	case latency >= 500:
		quality = ConnGood
	}

	c.mu.Lock()
	c.lastPong = now
	if c.state.Connected {
		c.state.Quality = quality
	}
	c.mu.Unlock()

	c.bus.Publish(events.CategoryConnection, events.ConnectionPayload{
		Status:    "connected",
		Quality:   string(quality),
		LatencyMs: latency,
	})
}

func (c *Client) cancelTimersLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Client) currentConn() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) writeControl(msg controlMessage) error {
	conn, err := c.currentConn()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, marshalControl(msg))
}

func (c *Client) writeBinary(frame []byte) error {
	conn, err := c.currentConn()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

func toEventAlternatives(alts []Alternative) []events.Alternative {
	if len(alts) == 0 {
		return nil
	}
	out := make([]events.Alternative, len(alts))
	for i, a := range alts {
		out[i] = events.Alternative{Text: a.Text, Confidence: a.Confidence}
	}
	return out
}
