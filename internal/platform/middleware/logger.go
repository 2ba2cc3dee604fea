package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestObserver is invoked once per completed request.
type RequestObserver func(method string, status int)

// Logger emits one structured log line per request with the correlation ID
// set by RequestID. Errors are resolved through the error handler before the
// line is written so the logged status is the one the client saw.
func Logger(logger zerolog.Logger, observers ...RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			for _, observe := range observers {
				observe(req.Method, status)
			}
			return err
		}
	}
}
