package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tekstiks/asrstream/internal/eventlog"
	"github.com/tekstiks/asrstream/internal/httpapi"
	"github.com/tekstiks/asrstream/internal/jobs"
	"github.com/tekstiks/asrstream/internal/notifications"
	"github.com/tekstiks/asrstream/internal/store"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger
	webhook  *notifications.Webhook
	janitor  *jobs.SessionJanitor
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)
	webhook := notifications.NewWebhook(cfg.WebhookURL, logger)

	// Migrations are applied externally by the deploy job.
	// No automatic migration runner at startup.

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    s,
		eventLog: el,
		webhook:  webhook,
		janitor:  jobs.NewSessionJanitor(s, el, logger, cfg.JanitorInterval, cfg.SessionStaleAfter),
	}, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:     a.cfg.PublicBaseURL,
		ASRUpstreamURL:    a.cfg.ASRUpstreamURL,
		SampleRate:        a.cfg.SampleRate,
		FrameSize:         a.cfg.FrameSize,
		MaxQueueSize:      a.cfg.MaxQueueSize,
		ReconnectAttempts: a.cfg.ReconnectAttempts,
		ReconnectDelay:    a.cfg.ReconnectDelay,
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		ConnectTimeout:    a.cfg.ConnectTimeout,
		JWTSecret:         a.cfg.JWTSecret,
		JWTExpiry:         a.cfg.JWTExpiry,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, a.webhook)
}

// Janitor returns the background sweep job. The caller owns Start/Stop.
func (a *App) Janitor() *jobs.SessionJanitor {
	return a.janitor
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
