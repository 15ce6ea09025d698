package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

// Segment is one finalized transcription result within a session.
type Segment struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Sequence     int             `json:"sequence"`
	Text         string          `json:"text"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Alternatives json.RawMessage `json:"alternatives,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	IsEdited     bool            `json:"is_edited"`
	CreatedAt    time.Time       `json:"created_at"`
}

// InsertSegment stores a finalized segment. The ID is assigned by the
// caller so the live bridge can hand it to subscribers before the write
// lands.
func (s *Store) InsertSegment(ctx context.Context, seg Segment) error {
	var alternatives any
	if len(seg.Alternatives) > 0 {
		alternatives = seg.Alternatives
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO segments (id, session_id, sequence, text, confidence, alternatives, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, seg.ID, seg.SessionID, seg.Sequence, seg.Text, seg.Confidence, alternatives, seg.DurationMs)
	return err
}

// ListSegments returns all segments of a session in sequence order,
// scoped to the session owner.
func (s *Store) ListSegments(ctx context.Context, sessionID, userID string) ([]Segment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sg.id, sg.session_id, sg.sequence, sg.text, sg.confidence, sg.alternatives, sg.duration_ms, sg.is_edited, sg.created_at
		FROM segments sg
		JOIN sessions sn ON sn.id = sg.session_id
		WHERE sg.session_id = $1 AND sn.user_id = $2
		ORDER BY sg.sequence ASC
	`, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Segment{}
	for rows.Next() {
		var sg Segment
		var alternatives []byte
		if err := rows.Scan(&sg.ID, &sg.SessionID, &sg.Sequence, &sg.Text, &sg.Confidence,
			&alternatives, &sg.DurationMs, &sg.IsEdited, &sg.CreatedAt); err != nil {
			return nil, err
		}
		if len(alternatives) > 0 {
			sg.Alternatives = json.RawMessage(alternatives)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// UpdateSegmentText replaces the text of a segment (manual correction)
// and marks it edited.
func (s *Store) UpdateSegmentText(ctx context.Context, segmentID, userID, text string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE segments sg
		SET text = $3, is_edited = TRUE
		FROM sessions sn
		WHERE sg.id = $1 AND sn.id = sg.session_id AND sn.user_id = $2
	`, segmentID, userID, text)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteSegment removes a single segment, scoped to the session owner.
func (s *Store) DeleteSegment(ctx context.Context, segmentID, userID string) error {
	result, err := s.db.Exec(ctx, `
		DELETE FROM segments sg
		USING sessions sn
		WHERE sg.id = $1 AND sn.id = sg.session_id AND sn.user_id = $2
	`, segmentID, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// NextSegmentSequence returns the next free sequence number for a
// session.
func (s *Store) NextSegmentSequence(ctx context.Context, sessionID string) (int, error) {
	var next int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence), 0) + 1 FROM segments WHERE session_id = $1
	`, sessionID).Scan(&next)
	return next, err
}
