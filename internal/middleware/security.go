package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets nosniff and frame denial on every response. They go
// on before the handler runs so streamed chart responses carry them too; a
// relayed upstream header of the same name replaces them.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderXFrameOptions, "DENY")
			return next(c)
		}
	}
}
