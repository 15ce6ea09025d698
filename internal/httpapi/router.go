package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/tekstiks/asrstream/internal/eventlog"
	"github.com/tekstiks/asrstream/internal/notifications"
	"github.com/tekstiks/asrstream/internal/store"
)

type RouterConfig struct {
	PublicBaseURL string

	// Upstream recognition endpoint the live bridge connects to
	ASRUpstreamURL string

	// Streaming defaults, overridable per user via settings
	SampleRate        int
	FrameSize         int
	MaxQueueSize      int
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	ConnectTimeout    time.Duration

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	store    *store.Store
	eventLog *eventlog.Logger
	webhook  *notifications.Webhook
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, webhook *notifications.Webhook) http.Handler {
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		eventLog: eventLog,
		webhook:  webhook,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Auth endpoints (public)
	r.mux.HandleFunc("POST /auth/register", r.handleRegister)
	r.mux.HandleFunc("POST /auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /auth/refresh", r.handleRefreshToken)
	r.mux.HandleFunc("POST /auth/logout", r.withAuth(r.handleLogout))

	// Protected API endpoints
	r.mux.HandleFunc("GET /api/me", r.withAuth(r.handleGetMe))
	r.mux.HandleFunc("PATCH /api/me", r.withAuth(r.handleUpdateMe))
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))
	r.mux.HandleFunc("POST /api/sessions", r.withAuth(r.handleCreateSession))
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withAuth(r.handleGetSession))
	r.mux.HandleFunc("PATCH /api/sessions/{id}", r.withAuth(r.handleUpdateSession))
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.withAuth(r.handleDeleteSession))
	r.mux.HandleFunc("POST /api/sessions/{id}/complete", r.withAuth(r.handleCompleteSession))
	r.mux.HandleFunc("GET /api/sessions/{id}/segments", r.withAuth(r.handleListSegments))
	r.mux.HandleFunc("POST /api/sessions/{id}/segments", r.withAuth(r.handleCreateSegment))
	r.mux.HandleFunc("GET /api/sessions/{id}/export", r.withAuth(r.handleExportSession))
	r.mux.HandleFunc("PATCH /api/segments/{id}", r.withAuth(r.handleUpdateSegment))
	r.mux.HandleFunc("DELETE /api/segments/{id}", r.withAuth(r.handleDeleteSegment))
	r.mux.HandleFunc("GET /api/settings", r.withAuth(r.handleGetSettings))
	r.mux.HandleFunc("PUT /api/settings", r.withAuth(r.handleUpdateSettings))

	// Live transcription bridge (token authenticated via query param)
	r.mux.HandleFunc("GET /live", r.handleLiveWS)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
