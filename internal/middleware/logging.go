// Package middleware provides Echo middleware for request logging, metrics
// and response headers.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger logs one line per request. Relay failures (5xx) are logged
// at warn and torn-down chart streams at error.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			route := routeLabel(c)

			logRequest := func(level slog.Level, status string) {
				req := c.Request()
				res := c.Response()
				logger.Log(req.Context(), level, "request",
					"route", route,
					"method", req.Method,
					"uri", req.URL.RequestURI(),
					"status", status,
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", res.Header().Get(echo.HeaderXRequestID),
					"remote_ip", c.RealIP(),
					"bytes_out", res.Size,
				)
			}

			defer func() {
				if r := recover(); r != nil {
					logRequest(slog.LevelError, abortedStatus(r))
					panic(r)
				}
			}()

			err = next(c)

			code := statusCode(c, err)
			level := slog.LevelInfo
			if code >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logRequest(level, strconv.Itoa(code))
			return err
		}
	}
}
