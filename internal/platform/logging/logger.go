package logging

import (
	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/phi"
)

// Logger is a facade for call sites that assemble log payloads
// dynamically: the message and every field value are sanitized before the
// event is handed to zerolog. Use it where structured payloads come from
// request data; plain zerolog behind a sanitizing Writer covers the rest.
type Logger struct {
	log zerolog.Logger
	s   *phi.Sanitizer
}

func NewLogger(log zerolog.Logger, s *phi.Sanitizer) *Logger {
	return &Logger{log: log, s: s}
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.emit(l.log.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(l.log.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit(l.log.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.emit(l.log.Error(), msg, fields)
}

// Err logs err at error level with its text sanitized; error strings can
// carry payload fragments.
func (l *Logger) Err(err error, msg string, fields map[string]any) {
	ev := l.log.Error()
	if err != nil {
		ev = ev.Str("error", l.s.SanitizeString(err.Error()))
	}
	l.emit(ev, msg, fields)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields map[string]any) {
	if len(fields) > 0 {
		ev = ev.Fields(l.s.SanitizeMap(fields))
	}
	ev.Msg(l.s.SanitizeString(msg))
}
