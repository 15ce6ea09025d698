package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/tekstiks/asrstream/internal/asr"
	"github.com/tekstiks/asrstream/internal/audio"
	"github.com/tekstiks/asrstream/internal/eventlog"
	"github.com/tekstiks/asrstream/internal/events"
	"github.com/tekstiks/asrstream/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveCommand is a control message from the browser.
type liveCommand struct {
	Type string `json:"type"`
}

// liveEvent is what the bridge sends back: engine events re-framed for
// the browser.
type liveEvent struct {
	Category  string `json:"category"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// liveBridge ties one browser connection to one recognition client.
// Inbound binary messages carry PCM16 audio; inbound text messages carry
// commands. Outbound text messages carry engine events. Each connection
// gets its own bus, pipeline and client, so concurrent sessions never
// share state.
type liveBridge struct {
	router   *Router
	conn     *websocket.Conn
	logger   *log.Logger
	user     *AuthUser
	session  *store.Session
	settings store.Settings
	bus      *events.Bus
	client   *asr.Client

	writeMu sync.Mutex

	mu     sync.Mutex
	source *audio.ChanSource
	seq    int
}

// handleLiveWS authenticates and upgrades a live transcription
// connection. Browsers cannot set headers on WebSocket dials, so the
// token arrives as a query parameter.
func (r *Router) handleLiveWS(w http.ResponseWriter, req *http.Request) {
	user, err := r.authenticateToken(req.Context(), req.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, `{"error": "`+err.Error()+`"}`, http.StatusUnauthorized)
		return
	}

	session, err := r.store.GetSession(req.Context(), req.URL.Query().Get("session"), user.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	if session.Status != "active" {
		http.Error(w, `{"error": "session already completed"}`, http.StatusConflict)
		return
	}

	settings, err := r.store.GetSettings(req.Context(), user.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	settings = withStreamDefaults(settings, r.cfg)

	seq, err := r.store.NextSegmentSequence(req.Context(), session.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("live: upgrade failed: %v", err)
		return
	}

	b := &liveBridge{
		router:   r,
		conn:     conn,
		logger:   r.logger,
		user:     user,
		session:  session,
		settings: settings,
		bus:      events.NewBus(),
		seq:      seq,
	}

	client, err := asr.New(asr.Options{
		URL:               r.cfg.ASRUpstreamURL,
		SampleRate:        settings.SampleRate,
		FrameSize:         settings.FrameSize,
		MaxQueueSize:      r.cfg.MaxQueueSize,
		ReconnectAttempts: r.cfg.ReconnectAttempts,
		ReconnectDelay:    r.cfg.ReconnectDelay,
		HeartbeatInterval: r.cfg.HeartbeatInterval,
		ConnectTimeout:    r.cfg.ConnectTimeout,
		NBest:             settings.NBest,
	}, b.newProducer, b.bus, r.logger)
	if err != nil {
		r.logger.Printf("live: client setup failed: %v", err)
		conn.Close()
		return
	}
	b.client = client

	r.logger.Printf("live: bridge open for session %s", session.ID)
	r.eventLog.LogAsync(session.ID, eventlog.EventSessionStarted, map[string]any{"user_id": user.ID})
	b.run(req.Context())
	r.logger.Printf("live: bridge closed for session %s", session.ID)
	r.eventLog.LogAsync(session.ID, eventlog.EventBridgeClosed, nil)
}

// withStreamDefaults fills zero audio fields from the server-wide
// streaming defaults; settings rows written before a field existed
// carry zeros.
func withStreamDefaults(s store.Settings, cfg RouterConfig) store.Settings {
	if s.SampleRate <= 0 {
		s.SampleRate = cfg.SampleRate
	}
	if s.FrameSize <= 0 {
		s.FrameSize = cfg.FrameSize
	}
	return s
}

// newProducer builds a fresh capture pipeline for each recording. The
// browser's audio blocks are written into the current source, and the
// pipeline's periodic signal metrics are republished as recording
// events so the browser can drive its level meter.
func (b *liveBridge) newProducer(ctx context.Context) (asr.FrameProducer, error) {
	src := audio.NewChanSource(16)
	p := audio.NewPipeline(audio.PipelineConfig{FrameSize: b.settings.FrameSize}, src, b.logger)
	b.mu.Lock()
	b.source = src
	b.mu.Unlock()
	go b.forwardMetrics(p.Analysis())
	return p, nil
}

// forwardMetrics runs until the pipeline's metrics channel closes on
// stop.
func (b *liveBridge) forwardMetrics(ch <-chan audio.Metrics) {
	for m := range ch {
		b.bus.Publish(events.CategoryRecording, events.RecordingPayload{
			Status:     "level",
			AudioLevel: m.Level,
		})
	}
}

func (b *liveBridge) run(ctx context.Context) {
	defer b.conn.Close()
	defer b.client.Destroy()

	eventCh, cancel := b.bus.Subscribe()

	forwarderDone := make(chan struct{})
	go b.forwardEvents(eventCh, forwarderDone)
	// Unsubscribe closes eventCh, so cancel must run before the wait.
	defer func() { <-forwarderDone }()
	defer cancel()

	if err := b.client.Connect(ctx); err != nil {
		b.logger.Printf("live: upstream connect failed: %v", err)
		return
	}

	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			// Browser went away mid-recording: stop cleanly, keep the
			// session open for the janitor or a reconnecting client.
			_ = b.client.StopRecording(context.Background())
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			b.handleAudio(data)
		case websocket.TextMessage:
			var cmd liveCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				b.sendError("malformed command")
				continue
			}
			if done := b.handleCommand(ctx, cmd); done {
				return
			}
		}
	}
}

func (b *liveBridge) handleAudio(data []byte) {
	b.mu.Lock()
	src := b.source
	b.mu.Unlock()
	if src == nil {
		return
	}

	samples := audio.DecodePCM16(data)
	if b.settings.HighPassCutoff > 0 {
		samples = audio.HighPassFilter(samples, b.settings.HighPassCutoff, b.settings.SampleRate)
	}
	if b.settings.NormalizeLevel > 0 {
		samples = audio.Normalize(samples, b.settings.NormalizeLevel)
	}
	src.Write(samples)
}

// handleCommand executes one control message. Returns true when the
// bridge should shut down.
func (b *liveBridge) handleCommand(ctx context.Context, cmd liveCommand) bool {
	switch cmd.Type {
	case "start":
		if err := b.client.StartRecording(ctx); err != nil {
			b.router.eventLog.LogAsync(b.session.ID, eventlog.EventDeviceError, map[string]any{"error": err.Error()})
			b.sendError(err.Error())
		}
	case "pause":
		b.client.PauseRecording()
	case "resume":
		b.client.ResumeRecording()
	case "stop":
		if err := b.client.StopRecording(ctx); err != nil {
			b.sendError(err.Error())
		}
	case "flush":
		if err := b.client.Flush(); err != nil {
			b.sendError(err.Error())
		}
	case "reset":
		if err := b.client.Reset(); err != nil {
			b.sendError(err.Error())
		}
	case "end":
		b.finish(ctx)
		return true
	default:
		b.sendError("unknown command " + cmd.Type)
	}
	return false
}

// finish stops recording, completes the session and reports the final
// stats to the browser before teardown.
func (b *liveBridge) finish(ctx context.Context) {
	if err := b.client.StopRecording(ctx); err != nil {
		b.logger.Printf("live: stop recording failed: %v", err)
	}

	err := b.router.store.CompleteSession(ctx, b.session.ID, b.user.ID)
	if err != nil && err != pgx.ErrNoRows {
		b.logger.Printf("live: complete session %s failed: %v", b.session.ID, err)
		b.sendError("failed to complete session")
		return
	}

	session, err := b.router.store.GetSession(ctx, b.session.ID, b.user.ID)
	if err != nil {
		b.logger.Printf("live: reload session %s failed: %v", b.session.ID, err)
		return
	}

	b.router.eventLog.LogAsync(session.ID, eventlog.EventSessionCompleted, map[string]any{
		"segment_count": session.SegmentCount,
		"word_count":    session.WordCount,
		"duration_ms":   session.DurationMs,
	})
	b.router.webhook.NotifySessionCompleted(context.Background(), session)
	b.writeEvent(liveEvent{
		Category:  string(events.CategorySession),
		Timestamp: time.Now().UnixMilli(),
		Payload:   events.SessionPayload{SessionID: session.ID, Status: session.Status},
	})
}

// forwardEvents relays engine events to the browser, persists final
// transcriptions and records lifecycle events for diagnostics.
func (b *liveBridge) forwardEvents(ch <-chan events.Event, done chan struct{}) {
	defer close(done)
	for ev := range ch {
		switch ev.Category {
		case events.CategoryTranscription:
			if p, ok := ev.Payload.(events.TranscriptionPayload); ok && p.IsFinal && p.Text != "" {
				b.persistSegment(p)
			}
		case events.CategoryRecording:
			if p, ok := ev.Payload.(events.RecordingPayload); ok {
				if et, known := recordingEventTypes[p.Status]; known {
					b.router.eventLog.LogAsync(b.session.ID, et, nil)
				}
			}
		case events.CategoryConnection:
			if p, ok := ev.Payload.(events.ConnectionPayload); ok && p.Status == "disconnected" {
				b.router.eventLog.LogAsync(b.session.ID, eventlog.EventConnectionLost, nil)
			}
		case events.CategoryError:
			if p, ok := ev.Payload.(events.ErrorPayload); ok {
				b.router.eventLog.LogAsync(b.session.ID, eventlog.EventUpstreamError, map[string]any{"error": p.Message})
			}
		}
		b.writeEvent(liveEvent{
			Category:  string(ev.Category),
			Timestamp: ev.Timestamp.UnixMilli(),
			Payload:   ev.Payload,
		})
	}
}

var recordingEventTypes = map[string]eventlog.EventType{
	"started":  eventlog.EventRecordingStarted,
	"stopped":  eventlog.EventRecordingStopped,
	"paused":   eventlog.EventRecordingPaused,
	"resumed":  eventlog.EventRecordingResumed,
	"overflow": eventlog.EventQueueOverflow,
}

func (b *liveBridge) persistSegment(p events.TranscriptionPayload) {
	b.mu.Lock()
	seq := b.seq
	b.seq++
	b.mu.Unlock()

	seg := store.Segment{
		ID:         p.SegmentID,
		SessionID:  b.session.ID,
		Sequence:   seq,
		Text:       p.Text,
		Confidence: p.Confidence,
		DurationMs: int64(p.Duration * 1000),
	}
	if len(p.Alternatives) > 0 {
		if raw, err := json.Marshal(p.Alternatives); err == nil {
			seg.Alternatives = raw
		}
	}

	ctx, cancelWrite := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWrite()

	if err := b.router.store.InsertSegment(ctx, seg); err != nil {
		b.logger.Printf("live: persist segment for session %s failed: %v", b.session.ID, err)
		return
	}
	if err := b.router.store.UpdateSessionStats(ctx, b.session.ID); err != nil {
		b.logger.Printf("live: update stats for session %s failed: %v", b.session.ID, err)
	}
}

func (b *liveBridge) writeEvent(ev liveEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Printf("live: marshal event failed: %v", err)
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *liveBridge) sendError(msg string) {
	b.writeEvent(liveEvent{
		Category:  string(events.CategoryError),
		Timestamp: time.Now().UnixMilli(),
		Payload:   events.ErrorPayload{Message: msg},
	})
}
