package asr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tekstiks/asrstream/internal/events"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeProducer feeds pre-baked frames into the client without a device.
type fakeProducer struct {
	frames chan []byte

	mu      sync.Mutex
	stopped bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{frames: make(chan []byte, 32)}
}

func (p *fakeProducer) Start(ctx context.Context) error { return nil }

func (p *fakeProducer) Frames() <-chan []byte { return p.frames }

func (p *fakeProducer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.frames)
	}
	return nil
}

type failingProducer struct{}

func (failingProducer) Start(ctx context.Context) error { return errors.New("device busy") }
func (failingProducer) Frames() <-chan []byte           { return nil }
func (failingProducer) Stop() error                     { return nil }

// wsServer runs handler for each websocket connection and returns the
// ws:// URL to dial.
func wsServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(t *testing.T, url string, producer *fakeProducer) (*Client, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return producer, nil }
	c, err := New(Options{URL: url, SendPacing: time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)
	return c, bus
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestConnectSendsConfig(t *testing.T) {
	got := make(chan []byte, 1)
	url := wsServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- data
		conn.ReadMessage() // hold the connection open
	})

	c, _ := newTestClient(t, url, newFakeProducer())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case data := <-got:
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("config unmarshal: %v", err)
		}
		if msg["event"] != "config" {
			t.Errorf("first message event = %v, want config", msg["event"])
		}
		if msg["n_best"] != float64(1) {
			t.Errorf("n_best = %v, want 1", msg["n_best"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the config message")
	}

	if st := c.State(); !st.Connected || st.Quality != ConnExcellent {
		t.Errorf("state after connect = %+v", st)
	}
}

func TestConnectIdempotent(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c, _ := newTestClient(t, url, newFakeProducer())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("second Connect: %v, want nil", err)
	}
}

func TestPartialThenFinalTranscription(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // config
		conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":false,"text":"hel"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":true,"alternatives":[{"text":"hello","confidence":0.93}]}`))
		<-release
	})
	defer close(release)

	c, bus := newTestClient(t, url, newFakeProducer())
	ch, cancel := bus.Subscribe(events.CategoryTranscription)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitEvent(t, ch)
	partial, ok := ev.Payload.(events.TranscriptionPayload)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if partial.IsFinal || partial.Text != "hel" {
		t.Errorf("partial = %+v, want text hel, is_final false", partial)
	}

	ev = waitEvent(t, ch)
	final := ev.Payload.(events.TranscriptionPayload)
	if !final.IsFinal || final.Text != "hello" {
		t.Errorf("final = %+v, want text hello, is_final true", final)
	}
	if final.Confidence == nil || *final.Confidence != 0.93 {
		t.Errorf("final confidence = %v, want 0.93", final.Confidence)
	}
	if st := c.State(); st.PartialText != "" {
		t.Errorf("PartialText after final = %q, want empty", st.PartialText)
	}
}

func TestServerErrorKeepsConnection(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"model overloaded"}`))
		<-release
	})
	defer close(release)

	c, bus := newTestClient(t, url, newFakeProducer())
	ch, cancel := bus.Subscribe(events.CategoryError)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitEvent(t, ch)
	if ev.Payload.(events.ErrorPayload).Message != "model overloaded" {
		t.Errorf("error payload = %+v", ev.Payload)
	}
	if st := c.State(); !st.Connected {
		t.Error("server error tore down the connection")
	}
	if st := c.State(); st.LastError != "model overloaded" {
		t.Errorf("LastError = %q", st.LastError)
	}
}

func TestMalformedMessageIgnored(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":false,"text":"ok"}`))
		<-release
	})
	defer close(release)

	c, bus := newTestClient(t, url, newFakeProducer())
	ch, cancel := bus.Subscribe(events.CategoryTranscription)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ev := waitEvent(t, ch)
	if ev.Payload.(events.TranscriptionPayload).Text != "ok" {
		t.Errorf("transcription after malformed message = %+v", ev.Payload)
	}
}

func TestStartRecordingRequiresConnection(t *testing.T) {
	c, _ := newTestClient(t, "ws://127.0.0.1:1/unreachable", newFakeProducer())
	if err := c.StartRecording(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("StartRecording = %v, want ErrNotConnected", err)
	}
}

func TestStartRecordingDeviceFailure(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return failingProducer{}, nil }
	c, err := New(Options{URL: url}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.StartRecording(context.Background()); err == nil {
		t.Fatal("StartRecording with failing device succeeded")
	}
	if st := c.State(); st.Recording {
		t.Error("Recording true after device failure")
	}
}

func TestFramesReachServer(t *testing.T) {
	frames := make(chan []byte, 8)
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				frames <- data
			}
		}
	})

	producer := newFakeProducer()
	c, _ := newTestClient(t, url, producer)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	want := [][]byte{{1, 2}, {3, 4}, {5, 6}}
	for _, f := range want {
		producer.frames <- f
	}

	for i, wf := range want {
		select {
		case got := <-frames:
			if string(got) != string(wf) {
				t.Errorf("frame %d = %v, want %v", i, got, wf)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d never reached the server", i)
		}
	}
}

func TestPauseDiscardsFrames(t *testing.T) {
	var mu sync.Mutex
	var binary int
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			mt, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				mu.Lock()
				binary++
				mu.Unlock()
			}
		}
	})

	producer := newFakeProducer()
	c, bus := newTestClient(t, url, producer)
	ch, cancel := bus.Subscribe(events.CategoryRecording)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	c.PauseRecording()
	if st := c.State(); !st.Paused || !st.Recording {
		t.Fatalf("state after pause = %+v", st)
	}

	producer.frames <- []byte{9, 9}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := binary
	mu.Unlock()
	if got != 0 {
		t.Errorf("server received %d frames while paused, want 0", got)
	}
	if c.queue.len() != 0 {
		t.Errorf("paused frame entered the queue, len = %d", c.queue.len())
	}

	c.ResumeRecording()
	if st := c.State(); st.Paused {
		t.Error("Paused still true after resume")
	}

	for _, want := range []string{"started", "paused", "resumed"} {
		ev := waitEvent(t, ch)
		if p := ev.Payload.(events.RecordingPayload); p.Status != want {
			t.Fatalf("recording event = %q, want %q", p.Status, want)
		}
	}
}

func TestStopRecordingClearsFlags(t *testing.T) {
	sawEnd := make(chan struct{}, 1)
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && strings.Contains(string(data), `"end"`) {
				sawEnd <- struct{}{}
			}
		}
	})

	producer := newFakeProducer()
	c, _ := newTestClient(t, url, producer)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	c.PauseRecording()

	if err := c.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	st := c.State()
	if st.Recording || st.Paused {
		t.Errorf("state after stop = %+v, want Recording and Paused false", st)
	}
	select {
	case <-sawEnd:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the end message")
	}

	// Stopping again is a no-op.
	if err := c.StopRecording(context.Background()); err != nil {
		t.Errorf("second StopRecording: %v", err)
	}
}

func TestPongGradesQuality(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // config
		now := time.Now().UnixMilli()
		for _, ts := range []int64{now, now - 700, now - 1500} {
			msg := `{"event":"pong","timestamp":` + strconv.FormatInt(ts, 10) + `}`
			conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		<-release
	})
	defer close(release)

	c, bus := newTestClient(t, url, newFakeProducer())
	ch, cancel := bus.Subscribe(events.CategoryConnection)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The first connected event comes from Connect itself, then one per
	// pong graded by its round trip.
	want := []ConnQuality{ConnExcellent, ConnExcellent, ConnGood, ConnPoor}
	for i, w := range want {
		var p events.ConnectionPayload
		for {
			ev := waitEvent(t, ch)
			p = ev.Payload.(events.ConnectionPayload)
			if p.Status == "connected" {
				break
			}
		}
		if ConnQuality(p.Quality) != w {
			t.Errorf("connected event %d quality = %q, want %q", i, p.Quality, w)
		}
	}
	if st := c.State(); st.Quality != ConnPoor {
		t.Errorf("Quality after stale pong = %q, want poor", st.Quality)
	}
}

func TestHeartbeatStalePongDegradesQuality(t *testing.T) {
	pings := make(chan struct{}, 8)
	url := wsServer(t, func(conn *websocket.Conn) {
		// Swallow pings so the pong bookkeeping goes stale.
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), `"ping"`) {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	})

	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return newFakeProducer(), nil }
	c, err := New(Options{URL: url, HeartbeatInterval: 20 * time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)
	ch, cancel := bus.Subscribe(events.CategoryConnection)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never sent a ping")
	}

	for {
		ev := waitEvent(t, ch)
		p := ev.Payload.(events.ConnectionPayload)
		if p.Status == "connected" && ConnQuality(p.Quality) == ConnPoor {
			break
		}
	}
	st := c.State()
	if !st.Connected || st.Quality != ConnPoor {
		t.Errorf("state after overdue pong = %+v, want connected with poor quality", st)
	}
}

func TestReconnectAfterConnectionDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	second := make(chan struct{})
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		conn.ReadMessage() // config
		if n == 1 {
			return // dropped without a close frame
		}
		close(second)
		<-release
	})
	defer close(release)

	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return newFakeProducer(), nil }
	c, err := New(Options{URL: url, ReconnectDelay: 10 * time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("client never redialed after the drop")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := c.State()
		if st.Connected {
			if st.LastError != "" {
				t.Errorf("LastError after successful reconnect = %q", st.LastError)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("state never returned to connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNoReconnectOnNormalClose(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	url := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn.ReadMessage() // config
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		conn.WriteMessage(websocket.CloseMessage, msg)
	})

	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return newFakeProducer(), nil }
	c, err := New(Options{URL: url, ReconnectDelay: 10 * time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.State().Connected {
		if time.Now().After(deadline) {
			t.Fatal("connection never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond) // several backoff periods

	mu.Lock()
	n := dials
	mu.Unlock()
	if n != 1 {
		t.Errorf("dialed %d times after a normal close, want 1", n)
	}
}

func TestReconnectExhausted(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		first := dials == 1
		mu.Unlock()
		if !first {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn.ReadMessage() // config
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return newFakeProducer(), nil }
	c, err := New(Options{URL: url, ReconnectAttempts: 2, ReconnectDelay: 5 * time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)
	ch, cancel := bus.Subscribe(events.CategoryError)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Each failed redial publishes its dial error first.
	for {
		ev := waitEvent(t, ch)
		if ev.Payload.(events.ErrorPayload).Message == ErrReconnectExhausted.Error() {
			break
		}
	}
	st := c.State()
	if st.Connected {
		t.Error("Connected true after exhausting reconnect attempts")
	}
	if st.LastError != ErrReconnectExhausted.Error() {
		t.Errorf("LastError = %q, want %q", st.LastError, ErrReconnectExhausted)
	}
}

func TestRecordingSurvivesReconnect(t *testing.T) {
	frames := make(chan []byte, 8)
	var mu sync.Mutex
	dials := 0
	url := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			if n == 1 {
				return // drop after the first frame
			}
			frames <- data
		}
	})

	bus := events.NewBus()
	producer := newFakeProducer()
	factory := func(ctx context.Context) (FrameProducer, error) { return producer, nil }
	c, err := New(Options{URL: url, ReconnectDelay: 20 * time.Millisecond, SendPacing: time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)
	ch, cancel := bus.Subscribe(events.CategoryConnection)
	defer cancel()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	producer.frames <- []byte{1, 1} // server drops the connection on this
	for {
		ev := waitEvent(t, ch)
		if ev.Payload.(events.ConnectionPayload).Status == "disconnected" {
			break
		}
	}

	// A frame sent into the gap makes the drainer hit the dead socket.
	producer.frames <- []byte{2, 2}

	for {
		ev := waitEvent(t, ch)
		if ev.Payload.(events.ConnectionPayload).Status == "connected" {
			break
		}
	}
	if st := c.State(); !st.Recording {
		t.Fatal("Recording cleared by the reconnect")
	}

	producer.frames <- []byte{3, 3}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-frames:
			if string(got) == string([]byte{3, 3}) {
				return
			}
		case <-deadline:
			t.Fatal("frame never reached the server after the reconnect")
		}
	}
}

func TestDestroyDisablesConnect(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c, _ := newTestClient(t, url, newFakeProducer())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Destroy()
	c.Destroy() // idempotent

	if err := c.Connect(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Connect after Destroy = %v, want ErrDestroyed", err)
	}
	if err := c.StartRecording(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("StartRecording after Destroy = %v, want ErrDestroyed", err)
	}
	if st := c.State(); st.Connected {
		t.Error("Connected true after Destroy")
	}
}

func TestConnectTimeout(t *testing.T) {
	// A TCP listener that never answers the HTTP upgrade.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	bus := events.NewBus()
	factory := func(ctx context.Context) (FrameProducer, error) { return newFakeProducer(), nil }
	c, err := New(Options{URL: url, ConnectTimeout: 100 * time.Millisecond}, factory, bus, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Destroy)

	if err := c.Connect(context.Background()); !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("Connect = %v, want ErrConnectTimeout", err)
	}
}

func TestReconnectDelay(t *testing.T) {
	base := time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := reconnectDelay(tc.attempt, base); got != tc.want {
			t.Errorf("reconnectDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
	if got := reconnectDelay(1, 20*time.Second); got != 30*time.Second {
		t.Errorf("reconnectDelay(1, 20s) = %s, want ceiling 30s", got)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "ws://x"}.withDefaults()
	if o.SampleRate != 16000 || o.FrameSize != 1024 || o.MaxQueueSize != 20 {
		t.Errorf("audio defaults = %d/%d/%d", o.SampleRate, o.FrameSize, o.MaxQueueSize)
	}
	if o.ReconnectAttempts != 5 || o.ReconnectDelay != time.Second {
		t.Errorf("reconnect defaults = %d/%s", o.ReconnectAttempts, o.ReconnectDelay)
	}
	if o.HeartbeatInterval != 30*time.Second || o.ConnectTimeout != 10*time.Second {
		t.Errorf("timing defaults = %s/%s", o.HeartbeatInterval, o.ConnectTimeout)
	}
}
