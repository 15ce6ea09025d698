package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tekstiks/asrstream/internal/eventlog"
	"github.com/tekstiks/asrstream/internal/export"
	"github.com/tekstiks/asrstream/internal/store"
)

const defaultSessionListLimit = 50

// handleListSessions returns the user's recent sessions.
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	limit := defaultSessionListLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := r.store.ListSessions(req.Context(), authUser.ID, limit)
	if err != nil {
		r.logger.Printf("sessions: list failed for user %s: %v", authUser.ID, err)
		captureError(req, err, "failed to list sessions")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleCreateSession opens a new recording session.
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Title    string `json:"title"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	settings, err := r.store.GetSettings(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("sessions: settings lookup failed: %v", err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	if body.Title == "" {
		body.Title = "Untitled session"
	}
	if body.Language == "" {
		body.Language = settings.Language
	}

	session, err := r.store.CreateSession(req.Context(), authUser.ID, body.Title, body.Language, settings.SampleRate)
	if err != nil {
		r.logger.Printf("sessions: create failed for user %s: %v", authUser.ID, err)
		captureError(req, err, "failed to create session")
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": session,
		"live_url": fmt.Sprintf("%s/live?session=%s",
			wsURLFromPublicBase(r.cfg.PublicBaseURL), session.ID),
	})
}

// handleGetSession returns one session.
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	session, err := r.store.GetSession(req.Context(), req.PathValue("id"), authUser.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// handleUpdateSession renames a session.
func (r *Router) handleUpdateSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Title == "" {
		http.Error(w, `{"error": "title is required"}`, http.StatusBadRequest)
		return
	}

	err := r.store.UpdateSessionTitle(req.Context(), req.PathValue("id"), authUser.ID, body.Title)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	session, err := r.store.GetSession(req.Context(), req.PathValue("id"), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleDeleteSession removes a session and its segments.
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	err := r.store.DeleteSession(req.Context(), req.PathValue("id"), authUser.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCompleteSession closes a session explicitly (without the live
// bridge, for clients that upload segments out of band).
func (r *Router) handleCompleteSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id := req.PathValue("id")

	err := r.store.CompleteSession(req.Context(), id, authUser.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "no active session to complete"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	session, err := r.store.GetSession(req.Context(), id, authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	r.eventLog.LogAsync(session.ID, eventlog.EventSessionCompleted, map[string]any{
		"segment_count": session.SegmentCount,
		"word_count":    session.WordCount,
		"duration_ms":   session.DurationMs,
	})
	// Background context: the send outlives this request.
	r.webhook.NotifySessionCompleted(context.Background(), session)
	writeJSON(w, http.StatusOK, session)
}

// handleListSegments returns all segments of a session.
func (r *Router) handleListSegments(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	segments, err := r.store.ListSegments(req.Context(), req.PathValue("id"), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

// handleCreateSegment appends a segment out of band, for clients that
// transcribe elsewhere and upload results. The segment goes at the end
// of the sequence.
func (r *Router) handleCreateSegment(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
		DurationMs int64    `json:"duration_ms"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Text == "" {
		http.Error(w, `{"error": "text is required"}`, http.StatusBadRequest)
		return
	}

	session, err := r.store.GetSession(req.Context(), req.PathValue("id"), authUser.ID)
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

	seq, err := r.store.NextSegmentSequence(req.Context(), session.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	seg := store.Segment{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Sequence:   seq,
		Text:       body.Text,
		Confidence: body.Confidence,
		DurationMs: body.DurationMs,
	}
	if err := r.store.InsertSegment(req.Context(), seg); err != nil {
		r.logger.Printf("segments: insert failed for session %s: %v", session.ID, err)
		captureError(req, err, "failed to insert segment")
		http.Error(w, `{"error": "failed to create segment"}`, http.StatusInternalServerError)
		return
	}
	if err := r.store.UpdateSessionStats(req.Context(), session.ID); err != nil {
		r.logger.Printf("segments: stats update failed for session %s: %v", session.ID, err)
	}

	writeJSON(w, http.StatusCreated, seg)
}

// handleUpdateSegment applies a manual text correction.
func (r *Router) handleUpdateSegment(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Text == "" {
		http.Error(w, `{"error": "text is required"}`, http.StatusBadRequest)
		return
	}

	err := r.store.UpdateSegmentText(req.Context(), req.PathValue("id"), authUser.ID, body.Text)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "segment not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteSegment removes one segment.
func (r *Router) handleDeleteSegment(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	err := r.store.DeleteSegment(req.Context(), req.PathValue("id"), authUser.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "segment not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleExportSession renders the transcript in the requested format.
// Query params: format=txt|json|csv, timestamps=1, confidence=1,
// alternatives=1, separator=<text>.
func (r *Router) handleExportSession(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	q := req.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, `{"error": "unsupported format, use txt, json or csv"}`, http.StatusBadRequest)
		return
	}

	session, err := r.store.GetSession(req.Context(), req.PathValue("id"), authUser.ID)
	if err == pgx.ErrNoRows {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	segments, err := r.store.ListSegments(req.Context(), session.ID, authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	opts := export.Options{
		IncludeTimestamps:   q.Get("timestamps") == "1",
		IncludeConfidence:   q.Get("confidence") == "1",
		IncludeAlternatives: q.Get("alternatives") == "1",
		SegmentSeparator:    q.Get("separator"),
	}

	out, err := export.Render(format, session, segments, opts)
	if err != nil {
		captureError(req, err, "transcript render failed")
		http.Error(w, `{"error": "export failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(session, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
