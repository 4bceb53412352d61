package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/metrics"
)

// MetricsMiddleware records every inbound request against m. A chart stream
// torn down mid-flight is counted with status "aborted" before the abort
// continues up the stack.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			done := m.TrackInFlight()
			defer done()

			route := routeLabel(c)
			method := c.Request().Method
			start := time.Now()

			defer func() {
				if r := recover(); r != nil {
					m.ObserveRequest(route, method, abortedStatus(r), time.Since(start))
					panic(r)
				}
			}()

			err = next(c)
			m.ObserveRequest(route, method, strconv.Itoa(statusCode(c, err)), time.Since(start))
			return err
		}
	}
}
