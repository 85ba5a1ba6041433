package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/platform/auth"
)

// Logger returns middleware that emits one structured access log line per
// request. The given logger is expected to already write through a
// sanitizing writer, so paths and query strings that carry PHI never reach
// the sink raw.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			userID, _ := auth.UserIDFromContext(req.Context())

			evt.
				Str("request_id", rid).
				Str("user_id", userID).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
