package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Session represents one recording session and its aggregate stats.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Language      string     `json:"language"`
	SampleRate    int        `json:"sample_rate"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
	SegmentCount  int        `json:"segment_count"`
	WordCount     int        `json:"word_count"`
	AvgConfidence *float64   `json:"avg_confidence,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const sessionColumns = `id, user_id, title, status, language, sample_rate, started_at, ended_at,
       duration_ms, segment_count, word_count, avg_confidence, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var sn Session
	err := row.Scan(
		&sn.ID, &sn.UserID, &sn.Title, &sn.Status, &sn.Language, &sn.SampleRate,
		&sn.StartedAt, &sn.EndedAt, &sn.DurationMs, &sn.SegmentCount, &sn.WordCount,
		&sn.AvgConfidence, &sn.CreatedAt, &sn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

// CreateSession creates a new recording session in the active state.
func (s *Store) CreateSession(ctx context.Context, userID, title, language string, sampleRate int) (*Session, error) {
	return scanSession(s.db.QueryRow(ctx, `
		INSERT INTO sessions (user_id, title, language, sample_rate)
		VALUES ($1, $2, $3, $4)
		RETURNING `+sessionColumns+`
	`, userID, title, language, sampleRate))
}

// GetSession retrieves a session scoped to its owner.
func (s *Store) GetSession(ctx context.Context, id, userID string) (*Session, error) {
	return scanSession(s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// ListSessions returns the most recent sessions for a user.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sn, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

// UpdateSessionTitle renames a session.
func (s *Store) UpdateSessionTitle(ctx context.Context, id, userID, title string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sessions SET title = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, title)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CompleteSession marks a session completed and freezes its duration.
func (s *Store) CompleteSession(ctx context.Context, id, userID string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET status = 'completed',
		    ended_at = NOW(),
		    duration_ms = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::bigint,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`, id, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateSessionStats refreshes the aggregate counters from the stored
// segments.
func (s *Store) UpdateSessionStats(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET
			segment_count = agg.segments,
			word_count = agg.words,
			avg_confidence = agg.confidence,
			updated_at = NOW()
		FROM (
			SELECT COUNT(*) AS segments,
			       COALESCE(SUM(array_length(regexp_split_to_array(trim(text), '\s+'), 1)), 0) AS words,
			       AVG(confidence) AS confidence
			FROM segments WHERE session_id = $1
		) agg
		WHERE sessions.id = $1
	`, id)
	return err
}

// DeleteSession removes a session and its segments.
func (s *Store) DeleteSession(ctx context.Context, id, userID string) error {
	result, err := s.db.Exec(ctx, `
		DELETE FROM sessions WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CompleteStaleSessions closes active sessions whose last update is older
// than the cutoff. Used by the janitor for clients that vanished without
// a clean stop. Returns the IDs of the sessions closed.
func (s *Store) CompleteStaleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE sessions
		SET status = 'completed',
		    ended_at = updated_at,
		    duration_ms = (EXTRACT(EPOCH FROM (updated_at - started_at)) * 1000)::bigint
		WHERE status = 'active' AND updated_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
