package httpapi

import (
	"testing"

	"github.com/tekstiks/asrstream/internal/store"
)

func TestValidateSettings(t *testing.T) {
	good := store.DefaultSettings()
	if msg, ok := validateSettings(good); !ok {
		t.Fatalf("defaults rejected: %s", msg)
	}

	cases := []struct {
		name   string
		mutate func(*store.Settings)
	}{
		{"empty language", func(s *store.Settings) { s.Language = "" }},
		{"n_best too high", func(s *store.Settings) { s.NBest = 11 }},
		{"odd sample rate", func(s *store.Settings) { s.SampleRate = 12345 }},
		{"frame too small", func(s *store.Settings) { s.FrameSize = 64 }},
		{"cutoff above nyquist", func(s *store.Settings) { s.HighPassCutoff = 9000 }},
		{"normalize above one", func(s *store.Settings) { s.NormalizeLevel = 1.5 }},
	}
	for _, tc := range cases {
		s := store.DefaultSettings()
		tc.mutate(&s)
		if _, ok := validateSettings(s); ok {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}
