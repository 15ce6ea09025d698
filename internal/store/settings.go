package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Settings holds per-user recognition preferences. Absent rows resolve
// to DefaultSettings.
type Settings struct {
	UserID         string  `json:"user_id,omitempty"`
	Language       string  `json:"language"`
	NBest          int     `json:"n_best"`
	SampleRate     int     `json:"sample_rate"`
	FrameSize      int     `json:"frame_size"`
	HighPassCutoff float64 `json:"high_pass_cutoff_hz"`
	NormalizeLevel float64 `json:"normalize_level"`
}

// DefaultSettings are used for users who never saved preferences.
func DefaultSettings() Settings {
	return Settings{
		Language:       "en",
		NBest:          1,
		SampleRate:     16000,
		FrameSize:      1024,
		HighPassCutoff: 80,
		NormalizeLevel: 0.8,
	}
}

// GetSettings retrieves a user's settings, falling back to defaults when
// none are stored.
func (s *Store) GetSettings(ctx context.Context, userID string) (Settings, error) {
	var st Settings
	err := s.db.QueryRow(ctx, `
		SELECT user_id, language, n_best, sample_rate, frame_size, high_pass_cutoff_hz, normalize_level
		FROM user_settings
		WHERE user_id = $1
	`, userID).Scan(&st.UserID, &st.Language, &st.NBest, &st.SampleRate, &st.FrameSize,
		&st.HighPassCutoff, &st.NormalizeLevel)
	if err == pgx.ErrNoRows {
		st = DefaultSettings()
		st.UserID = userID
		return st, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return st, nil
}

// UpsertSettings saves a user's settings.
func (s *Store) UpsertSettings(ctx context.Context, userID string, st Settings) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_settings (user_id, language, n_best, sample_rate, frame_size, high_pass_cutoff_hz, normalize_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			language = EXCLUDED.language,
			n_best = EXCLUDED.n_best,
			sample_rate = EXCLUDED.sample_rate,
			frame_size = EXCLUDED.frame_size,
			high_pass_cutoff_hz = EXCLUDED.high_pass_cutoff_hz,
			normalize_level = EXCLUDED.normalize_level,
			updated_at = NOW()
	`, userID, st.Language, st.NBest, st.SampleRate, st.FrameSize, st.HighPassCutoff, st.NormalizeLevel)
	return err
}
