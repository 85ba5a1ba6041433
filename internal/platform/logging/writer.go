package logging

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/phi"
)

// Writer is an io.Writer decorator that sanitizes every log line before it
// reaches the wrapped sink. It parses each line as a JSON event and redacts
// it field-wise; lines that are not JSON are sanitized as plain text. With
// the writer in front of the sink, no PHI reaches a file, console or remote
// collector even when a call site forgot to sanitize.
type Writer struct {
	out io.Writer
	s   *phi.Sanitizer
}

func NewWriter(out io.Writer, s *phi.Sanitizer) *Writer {
	return &Writer{out: out, s: s}
}

// Write never reports a sanitizer-caused error; only failures of the
// underlying sink propagate. Re-encoding a JSON event sorts its keys.
func (w *Writer) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")

	var event map[string]any
	if err := json.Unmarshal(line, &event); err == nil {
		clean := w.s.SanitizeMap(event)
		if enc, mErr := json.Marshal(clean); mErr == nil {
			enc = append(enc, '\n')
			if _, wErr := w.out.Write(enc); wErr != nil {
				return 0, wErr
			}
			return len(p), nil
		}
	}

	// Not a JSON event: sanitize the raw text instead.
	if _, err := io.WriteString(w.out, w.s.SanitizeString(string(line))+"\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// New builds the application logger: JSON events, timestamped, with all
// output routed through a sanitizing Writer.
func New(out io.Writer, s *phi.Sanitizer) zerolog.Logger {
	return zerolog.New(NewWriter(out, s)).With().Timestamp().Logger()
}

// WithSanitized runs fn with a logger scoped to the call whose output is
// routed through a sanitizing Writer on out. The logger must not be
// retained past fn's return.
func WithSanitized(out io.Writer, s *phi.Sanitizer, fn func(zerolog.Logger) error) error {
	return fn(New(out, s))
}
