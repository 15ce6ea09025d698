package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tekstiks/asrstream/internal/store"
)

// handleGetSettings returns the user's recognition preferences.
func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	settings, err := r.store.GetSettings(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("settings: lookup failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func validateSettings(st store.Settings) (string, bool) {
	if st.Language == "" {
		return "language is required", false
	}
	if st.NBest < 1 || st.NBest > 10 {
		return "n_best must be between 1 and 10", false
	}
	switch st.SampleRate {
	case 8000, 16000, 22050, 44100, 48000:
	default:
		return "unsupported sample_rate", false
	}
	if st.FrameSize < 128 || st.FrameSize > 8192 {
		return "frame_size must be between 128 and 8192", false
	}
	if st.HighPassCutoff < 0 || st.HighPassCutoff >= float64(st.SampleRate)/2 {
		return "high_pass_cutoff_hz out of range", false
	}
	if st.NormalizeLevel <= 0 || st.NormalizeLevel > 1 {
		return "normalize_level must be in (0, 1]", false
	}
	return "", true
}

// handleUpdateSettings replaces the user's recognition preferences.
func (r *Router) handleUpdateSettings(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var st store.Settings
	if err := json.NewDecoder(req.Body).Decode(&st); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if msg, ok := validateSettings(st); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	if err := r.store.UpsertSettings(req.Context(), authUser.ID, st); err != nil {
		r.logger.Printf("settings: upsert failed for user %s: %v", authUser.ID, err)
		captureError(req, err, "failed to save settings")
		http.Error(w, `{"error": "failed to save settings"}`, http.StatusInternalServerError)
		return
	}

	st.UserID = authUser.ID
	writeJSON(w, http.StatusOK, st)
}
