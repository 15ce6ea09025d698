package asr

import "encoding/json"

// Wire protocol: JSON text messages discriminated by "event", plus raw
// binary messages of 16-bit little-endian PCM, one per frame.

// controlMessage is a client->server (or ping/pong either way) text
// message.
type controlMessage struct {
	Event     string `json:"event"`
	NBest     int    `json:"n_best,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // epoch millis on ping/pong
}

const (
	eventConfig = "config"
	eventEnd    = "end"
	eventFlush  = "flush"
	eventReset  = "reset"
	eventPing   = "ping"
	eventPong   = "pong"
)

// Alternative is one ranked recognition hypothesis, best first.
type Alternative struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// serverMessage is any inbound text message: a pong, a server error, or
// a recognition result.
type serverMessage struct {
	Event        string        `json:"event,omitempty"`
	Timestamp    int64         `json:"timestamp,omitempty"`
	IsFinal      bool          `json:"is_final"`
	Text         string        `json:"text,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Duration     float64       `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// bestText returns the committed text of a final result: the top
// alternative, or empty when no alternatives came back.
func (m *serverMessage) bestText() string {
	if len(m.Alternatives) > 0 {
		return m.Alternatives[0].Text
	}
	return ""
}

func marshalControl(m controlMessage) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// controlMessage has no unmarshalable fields.
		panic(err)
	}
	return data
}
