package hipaa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/platform/middleware"
)

// AuditLogger persists PHI security events to the phi_security_event
// table. It implements middleware.SecurityAuditor; the middleware treats
// every call as best-effort, so a failed INSERT degrades the audit trail,
// never the request.
type AuditLogger struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// LogSecurityEvent writes one event row. Details are stored as JSONB; a
// zero Recorded time is defaulted here so callers can omit it.
func (a *AuditLogger) LogSecurityEvent(ctx context.Context, ev middleware.SecurityEvent) error {
	if ev.Recorded.IsZero() {
		ev.Recorded = time.Now().UTC()
	}

	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("hipaa audit: encode details: %w", err)
	}

	const query = `
		INSERT INTO phi_security_event (
			id, event_type, user_id, resource_type, resource_id,
			action, status, details, path, method, request_id, recorded
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = a.pool.Exec(ctx, query,
		uuid.New(), ev.EventType, ev.UserID, ev.ResourceType, ev.ResourceID,
		ev.Action, ev.Status, details, ev.Path, ev.Method, ev.RequestID, ev.Recorded)
	if err != nil {
		return fmt.Errorf("hipaa audit: insert security event: %w", err)
	}
	return nil
}

// LogRecorder is the database-free auditor used in development. Events
// become structured log lines on a logger that is expected to write
// through the sanitizing writer.
type LogRecorder struct {
	log zerolog.Logger
}

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) LogSecurityEvent(_ context.Context, ev middleware.SecurityEvent) error {
	if ev.Recorded.IsZero() {
		ev.Recorded = time.Now().UTC()
	}

	evt := r.log.Info().
		Str("type", "phi_security_event").
		Str("event_type", ev.EventType).
		Str("user_id", ev.UserID).
		Str("resource_type", ev.ResourceType).
		Str("resource_id", ev.ResourceID).
		Str("action", ev.Action).
		Str("status", ev.Status).
		Str("path", ev.Path).
		Str("method", ev.Method).
		Str("request_id", ev.RequestID).
		Time("recorded", ev.Recorded)
	for k, v := range ev.Details {
		evt = evt.Str("detail_"+k, v)
	}
	evt.Msg("security event")
	return nil
}
