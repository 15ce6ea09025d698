package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tekstiks/asrstream/internal/eventlog"
	"github.com/tekstiks/asrstream/internal/store"
)

// SessionJanitor sweeps up state that live bridges could not clean after
// themselves. It runs on a configurable interval (default: 5 minutes) and:
// - Completes sessions whose bridge died without sending an end command
// - Prunes expired and revoked auth sessions
type SessionJanitor struct {
	store      *store.Store
	eventLog   *eventlog.Logger
	logger     *log.Logger
	interval   time.Duration
	staleAfter time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewSessionJanitor creates a new session janitor.
func NewSessionJanitor(s *store.Store, eventLog *eventlog.Logger, logger *log.Logger, interval, staleAfter time.Duration) *SessionJanitor {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	if staleAfter == 0 {
		staleAfter = 30 * time.Minute
	}
	return &SessionJanitor{
		store:      s,
		eventLog:   eventLog,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background job.
func (j *SessionJanitor) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("SessionJanitor: started (interval=%v, staleAfter=%v)", j.interval, j.staleAfter)
}

// Stop gracefully stops the background job.
func (j *SessionJanitor) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("SessionJanitor: stopped")
}

func (j *SessionJanitor) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *SessionJanitor) sweep() {
	ctx := context.Background()
	j.completeStaleSessions(ctx)
	j.pruneAuthSessions(ctx)
}

func (j *SessionJanitor) completeStaleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-j.staleAfter)
	ids, err := j.store.CompleteStaleSessions(ctx, cutoff)
	if err != nil {
		j.logger.Printf("SessionJanitor: failed to complete stale sessions: %v", err)
		return
	}
	for _, id := range ids {
		if err := j.eventLog.Log(ctx, id, eventlog.EventSessionCompleted, map[string]any{"reason": "stale"}); err != nil {
			j.logger.Printf("SessionJanitor: failed to log sweep for session %s: %v", id, err)
		}
	}
	if len(ids) > 0 {
		j.logger.Printf("SessionJanitor: completed %d stale sessions", len(ids))
	}
}

func (j *SessionJanitor) pruneAuthSessions(ctx context.Context) {
	pruned, err := j.store.PruneAuthSessions(ctx, time.Now())
	if err != nil {
		j.logger.Printf("SessionJanitor: failed to prune auth sessions: %v", err)
		return
	}
	if pruned > 0 {
		j.logger.Printf("SessionJanitor: pruned %d auth sessions", pruned)
	}
}
