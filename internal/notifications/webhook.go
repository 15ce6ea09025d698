package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/tekstiks/asrstream/internal/store"
)

// Webhook posts transcript lifecycle events to a configured endpoint.
type Webhook struct {
	url    string
	logger *log.Logger
	client *http.Client
}

// NewWebhook creates a new webhook notifier. If url is empty,
// notifications are silently skipped.
func NewWebhook(url string, logger *log.Logger) *Webhook {
	return &Webhook{
		url:    url,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled returns true if the webhook is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

type webhookEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

type sessionCompletedPayload struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	SegmentCount int    `json:"segment_count"`
	WordCount    int    `json:"word_count"`
	DurationMs   int64  `json:"duration_ms"`
}

// send posts an event asynchronously. Errors are logged but don't
// affect the caller.
func (w *Webhook) send(ctx context.Context, ev webhookEvent) {
	if !w.Enabled() {
		return
	}

	go func() {
		body, err := json.Marshal(ev)
		if err != nil {
			w.logger.Printf("webhook: failed to marshal event: %v", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Printf("webhook: failed to create request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Printf("webhook: failed to send event: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			w.logger.Printf("webhook: endpoint returned status %d", resp.StatusCode)
		}
	}()
}

// NotifySessionCompleted fires when a recording session finishes.
func (w *Webhook) NotifySessionCompleted(ctx context.Context, sn *store.Session) {
	w.send(ctx, webhookEvent{
		Event:     "session.completed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload: sessionCompletedPayload{
			SessionID:    sn.ID,
			UserID:       sn.UserID,
			Title:        sn.Title,
			SegmentCount: sn.SegmentCount,
			WordCount:    sn.WordCount,
			DurationMs:   sn.DurationMs,
		},
	})
}
