package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/handler"
	"markov-relay/internal/metrics"
)

// catchAll is the pattern handler.RegisterRoutes uses for the relay dispatcher.
const catchAll = "/*"

// routeLabel names the route a request was served by. Requests that reached
// the dispatcher are labelled the way the dispatcher classifies them; anything
// matched by an explicit route (health, status, metrics) keeps its pattern.
func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" && p != catchAll {
		return p
	}
	req := c.Request()
	return handler.Classify(req.Method, req.URL.RequestURI()).String()
}

// statusCode reports the status the client will see. An *echo.HTTPError has
// not been written yet; Echo's central error handler does that later.
func statusCode(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}

// abortedStatus maps a recovered panic value to a status label.
func abortedStatus(r any) string {
	if r == http.ErrAbortHandler {
		return metrics.StatusAborted
	}
	return strconv.Itoa(http.StatusInternalServerError)
}
