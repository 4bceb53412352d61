// Package handler wires HTTP routes onto Echo: request classification, the
// two backend relays and the health endpoints.
package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/model"
	"markov-relay/internal/static"
)

const (
	runURI      = "/api/run"
	chartPrefix = "/api/chart"
)

// Classify picks the route for a request from its method and request URI
// (path plus query). The run check comes first: both routes share the /api
// prefix and the chart check must not shadow it.
func Classify(method, requestURI string) model.RouteMatch {
	if method == http.MethodPost && requestURI == runURI {
		return model.RunRoute
	}
	if method == http.MethodGet && strings.HasPrefix(requestURI, chartPrefix) {
		return model.ChartRoute
	}
	return model.StaticRoute
}

// Dispatcher sends each request to the proxy or the static asset server.
type Dispatcher struct {
	proxy  *ProxyHandler
	static *static.Server
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(proxy *ProxyHandler, assets *static.Server) *Dispatcher {
	return &Dispatcher{proxy: proxy, static: assets}
}

// Handle routes one request.
func (d *Dispatcher) Handle(c echo.Context) error {
	req := c.Request()

	switch Classify(req.Method, req.URL.RequestURI()) {
	case model.RunRoute:
		return d.proxy.Run(c)
	case model.ChartRoute:
		return d.proxy.Chart(c)
	default:
		return d.static.Serve(c)
	}
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, d *Dispatcher, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/relay/status", health.Status)

	e.Any("/*", d.Handle)
}
