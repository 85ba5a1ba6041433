package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/phi"
	"github.com/mindtwin/mindtwin/internal/platform/auth"
	"github.com/mindtwin/mindtwin/internal/platform/metrics"
)

// SecurityEvent is one detection, block, mask or denial reported to the
// audit trail. It carries enough metadata for compliance review and never
// the raw PHI value.
type SecurityEvent struct {
	EventType    string
	UserID       string
	ResourceType string
	ResourceID   string
	Action       string
	Status       string
	Details      map[string]string
	Path         string
	Method       string
	RequestID    string
	Recorded     time.Time
}

// SecurityAuditor persists security events. The middleware treats it as
// best-effort: an auditor failure is logged and never fails the request.
type SecurityAuditor interface {
	LogSecurityEvent(ctx context.Context, ev SecurityEvent) error
}

// SecurityAuditorFunc is a function adapter for SecurityAuditor.
type SecurityAuditorFunc func(ctx context.Context, ev SecurityEvent) error

func (f SecurityAuditorFunc) LogSecurityEvent(ctx context.Context, ev SecurityEvent) error {
	return f(ctx, ev)
}

// Audit event types emitted by the PHI middleware.
const (
	EventPHIDetected     = "phi_detected"
	EventPHIBlocked      = "phi_blocked"
	EventPHIMasked       = "phi_masked"
	EventPHIAccessDenied = "phi_access_denied"
)

// PHIConfig configures the PHI interceptor.
type PHIConfig struct {
	// Sanitizer drives detection and response masking. Required.
	Sanitizer *phi.Sanitizer

	// ExemptPaths are path prefixes that skip all PHI processing.
	// Defaults to /health, /metrics and /docs.
	ExemptPaths []string

	// BlockRequests rejects requests containing PHI with HTTP 400 instead
	// of passing them downstream.
	BlockRequests bool

	// MaskResponses sanitizes JSON response bodies before they reach the
	// client. Non-JSON responses pass through byte-identical.
	MaskResponses bool

	// RequireAccessReason denies requests on protected paths that do not
	// declare a purpose of use via the X-PHI-Access-Reason header.
	RequireAccessReason bool

	// Auditor receives every detection event. Optional.
	Auditor SecurityAuditor

	// Metrics counts blocks, masks and denials. Optional.
	Metrics *metrics.Metrics
}

func defaultExemptPaths() []string {
	return []string{"/health", "/metrics", "/docs"}
}

// PHI returns the request/response PHI interceptor. Per request it runs:
// exempt check, access-reason gate, request scan (query parameters and
// body, detection only), optional 400 block, downstream handler, then
// optional response masking. Detection failures inside the sanitizer
// degrade rather than propagate; the middleware itself never 500s a
// request over PHI handling.
func PHI(cfg PHIConfig, logger zerolog.Logger) echo.MiddlewareFunc {
	exempt := cfg.ExemptPaths
	if exempt == nil {
		exempt = defaultExemptPaths()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range exempt {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			if cfg.RequireAccessReason {
				purpose := auth.PurposeFromContext(c.Request().Context())
				if purpose == auth.PurposeNone {
					if cfg.Metrics != nil {
						cfg.Metrics.AccessDenied.Inc()
					}
					report(c, cfg, logger, SecurityEvent{
						EventType: EventPHIAccessDenied,
						Status:    "denied",
						Details:   map[string]string{"reason": "missing or invalid " + auth.AccessReasonHeader},
					})
					return echo.NewHTTPError(http.StatusForbidden,
						"a PHI access reason is required; set the "+auth.AccessReasonHeader+" header")
				}
			}

			if loc, found := scanRequest(c, cfg.Sanitizer); found {
				if cfg.BlockRequests {
					if cfg.Metrics != nil {
						cfg.Metrics.RequestsBlocked.Inc()
					}
					report(c, cfg, logger, SecurityEvent{
						EventType: EventPHIBlocked,
						Status:    "blocked",
						Details:   map[string]string{"location": loc},
					})
					return c.JSON(http.StatusBadRequest, map[string]any{
						"error":  "phi_detected",
						"detail": "PHI detected in request. Remove personal identifiers and retry.",
					})
				}
				report(c, cfg, logger, SecurityEvent{
					EventType: EventPHIDetected,
					Status:    "allowed",
					Details:   map[string]string{"location": loc},
				})
			}

			if !cfg.MaskResponses {
				return next(c)
			}
			return maskResponse(c, cfg, logger, next)
		}
	}
}

// scanRequest checks query parameters and the request body for PHI. It
// detects, never redacts, and restores the body for the downstream
// handler. The returned location names a field, never a value.
func scanRequest(c echo.Context, s *phi.Sanitizer) (string, bool) {
	req := c.Request()

	for key, values := range req.URL.Query() {
		if s.IsSensitiveKey(key) {
			return "query:" + key, true
		}
		for _, v := range values {
			if s.ContainsPHI(v) {
				return "query:" + key, true
			}
		}
	}

	if req.Body == nil || req.Body == http.NoBody {
		return "", false
	}
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return "", false
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return "", false
	}

	var decoded any
	if jErr := json.Unmarshal(body, &decoded); jErr == nil {
		if loc, found := scanValue(s, "", decoded); found {
			return "body:" + loc, true
		}
		return "", false
	}

	// Not JSON: scan the raw text.
	if s.ContainsPHI(string(body)) {
		return "body", true
	}
	return "", false
}

// scanValue walks a decoded JSON value looking for PHI. Sensitive key
// names count as hits on their own; string values are pattern-checked.
func scanValue(s *phi.Sanitizer, key string, v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if s.ContainsPHI(t) {
			return key, true
		}
	case map[string]any:
		for k, nested := range t {
			if s.IsSensitiveKey(k) && nested != nil && nested != "" {
				return k, true
			}
			if loc, found := scanValue(s, k, nested); found {
				return loc, true
			}
		}
	case []any:
		for _, nested := range t {
			if loc, found := scanValue(s, key, nested); found {
				return loc, true
			}
		}
	}
	return "", false
}

// maskResponse buffers the downstream response and sanitizes JSON bodies
// before they reach the client. Non-JSON bodies pass through unmodified.
func maskResponse(c echo.Context, cfg PHIConfig, logger zerolog.Logger, next echo.HandlerFunc) error {
	res := c.Response()
	original := res.Writer
	bw := &bufferingWriter{header: original.Header()}
	res.Writer = bw

	err := next(c)
	res.Writer = original

	if err != nil {
		// Let the error handler produce the response; anything the
		// handler buffered before failing is discarded.
		if bw.wroteHeader {
			res.Committed = false
		}
		return err
	}
	if !bw.wroteHeader && bw.buf.Len() == 0 {
		return nil
	}

	out := bw.buf.Bytes()
	if isJSONContent(bw.header.Get(echo.HeaderContentType)) {
		start := time.Now()
		if clean, changed := sanitizeJSONBody(cfg.Sanitizer, out); changed {
			out = clean
			if cfg.Metrics != nil {
				cfg.Metrics.ResponsesMasked.Inc()
			}
			report(c, cfg, logger, SecurityEvent{
				EventType: EventPHIMasked,
				Status:    "masked",
				Details:   map[string]string{"location": "response_body"},
			})
		}
		if cfg.Metrics != nil {
			cfg.Metrics.ObserveSanitizeDuration(time.Since(start))
		}
	}

	status := bw.status
	if status == 0 {
		status = http.StatusOK
	}
	bw.header.Set(echo.HeaderContentLength, strconv.Itoa(len(out)))
	original.WriteHeader(status)
	_, wErr := original.Write(out)
	return wErr
}

// sanitizeJSONBody walks a serialized JSON body through the sanitizer and
// reports whether anything changed. Bodies that fail to parse or
// re-serialize are passed through untouched rather than dropped.
func sanitizeJSONBody(s *phi.Sanitizer, body []byte) ([]byte, bool) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return body, false
	}

	var clean any
	switch t := decoded.(type) {
	case map[string]any:
		clean = s.SanitizeMap(t)
	case []any:
		clean = s.SanitizeSlice(t)
	case string:
		clean = s.SanitizeString(t)
	default:
		return body, false
	}

	enc, err := json.Marshal(clean)
	if err != nil {
		return body, false
	}

	var orig any
	_ = json.Unmarshal(body, &orig)
	var reenc []byte
	if reencBytes, mErr := json.Marshal(orig); mErr == nil {
		reenc = reencBytes
	}
	if bytes.Equal(enc, reenc) {
		return body, false
	}
	return enc, true
}

func isJSONContent(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return ct == echo.MIMEApplicationJSON || strings.HasSuffix(ct, "+json")
}

// report sends an event to the auditor and mirrors it to the structured
// log. Auditor failures are logged and swallowed so the audit path can
// never take down the request path.
func report(c echo.Context, cfg PHIConfig, logger zerolog.Logger, ev SecurityEvent) {
	req := c.Request()
	ev.Path = req.URL.Path
	ev.Method = req.Method
	ev.Action = httpMethodToAction(req.Method)
	if ev.Recorded.IsZero() {
		ev.Recorded = time.Now().UTC()
	}
	if rid, ok := c.Get("request_id").(string); ok {
		ev.RequestID = rid
	}
	if userID, ok := auth.UserIDFromContext(req.Context()); ok {
		ev.UserID = userID
	}

	if cfg.Auditor != nil {
		if err := cfg.Auditor.LogSecurityEvent(req.Context(), ev); err != nil {
			logger.Error().Err(err).
				Str("request_id", ev.RequestID).
				Str("event_type", ev.EventType).
				Msg("failed to record security event")
		}
	}

	logger.Warn().
		Str("type", "phi_security_event").
		Str("event_type", ev.EventType).
		Str("request_id", ev.RequestID).
		Str("user_id", ev.UserID).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Str("status", ev.Status).
		Fields(detailsFields(ev.Details)).
		Msg("phi event")
}

func detailsFields(details map[string]string) map[string]any {
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}

// httpMethodToAction maps HTTP methods to audit action codes.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// bufferingWriter captures the downstream response without committing it,
// so the body can be sanitized before any bytes reach the wire.
type bufferingWriter struct {
	header      http.Header
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (w *bufferingWriter) Header() http.Header { return w.header }

func (w *bufferingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.buf.Write(b)
}
