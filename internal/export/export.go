// Package export renders stored sessions into downloadable transcript
// formats.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tekstiks/asrstream/internal/store"
)

// Format identifies a transcript output format.
type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format string from a request.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("export: unsupported format %q", s)
}

// ContentType returns the MIME type to serve the format with.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Options control what the rendered transcript includes.
type Options struct {
	IncludeTimestamps   bool
	IncludeConfidence   bool
	IncludeAlternatives bool
	SegmentSeparator    string // text format only, default "\n"
}

// Render produces the transcript in the requested format.
func Render(f Format, session *store.Session, segments []store.Segment, opts Options) ([]byte, error) {
	switch f {
	case FormatText:
		return renderText(session, segments, opts), nil
	case FormatJSON:
		return renderJSON(session, segments, opts)
	case FormatCSV:
		return renderCSV(segments, opts)
	}
	return nil, fmt.Errorf("export: unsupported format %q", f)
}

func renderText(session *store.Session, segments []store.Segment, opts Options) []byte {
	sep := opts.SegmentSeparator
	if sep == "" {
		sep = "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", session.Title)
	fmt.Fprintf(&b, "# %s\n\n", session.StartedAt.Format(time.RFC3339))

	for i, sg := range segments {
		if i > 0 {
			b.WriteString(sep)
		}
		if opts.IncludeTimestamps {
			fmt.Fprintf(&b, "[%s] ", sg.CreatedAt.Format("15:04:05"))
		}
		b.WriteString(sg.Text)
		if opts.IncludeConfidence && sg.Confidence != nil {
			fmt.Fprintf(&b, " (%.2f)", *sg.Confidence)
		}
	}
	b.WriteString("\n")
	return []byte(b.String())
}

type jsonExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Session    *store.Session `json:"session"`
	Segments   []jsonSegment `json:"segments"`
}

type jsonSegment struct {
	Sequence     int             `json:"sequence"`
	Text         string          `json:"text"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Alternatives json.RawMessage `json:"alternatives,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
}

func renderJSON(session *store.Session, segments []store.Segment, opts Options) ([]byte, error) {
	out := jsonExport{
		ExportedAt: time.Now().UTC(),
		Session:    session,
		Segments:   make([]jsonSegment, 0, len(segments)),
	}
	for _, sg := range segments {
		js := jsonSegment{
			Sequence:   sg.Sequence,
			Text:       sg.Text,
			DurationMs: sg.DurationMs,
		}
		if opts.IncludeConfidence {
			js.Confidence = sg.Confidence
		}
		if opts.IncludeAlternatives {
			js.Alternatives = sg.Alternatives
		}
		if opts.IncludeTimestamps {
			t := sg.CreatedAt
			js.CreatedAt = &t
		}
		out.Segments = append(out.Segments, js)
	}
	return json.MarshalIndent(out, "", "  ")
}

func renderCSV(segments []store.Segment, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"sequence", "text"}
	if opts.IncludeTimestamps {
		header = append(header, "created_at")
	}
	if opts.IncludeConfidence {
		header = append(header, "confidence")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, sg := range segments {
		row := []string{strconv.Itoa(sg.Sequence), sg.Text}
		if opts.IncludeTimestamps {
			row = append(row, sg.CreatedAt.Format(time.RFC3339))
		}
		if opts.IncludeConfidence {
			if sg.Confidence != nil {
				row = append(row, strconv.FormatFloat(*sg.Confidence, 'f', 2, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Filename builds a download filename from the session title.
func Filename(session *store.Session, f Format) string {
	title := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, session.Title)
	if title == "" {
		title = "transcript"
	}
	return fmt.Sprintf("%s-%s.%s", strings.ToLower(title), session.StartedAt.Format("20060102-150405"), f)
}
