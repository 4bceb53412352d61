// Package model defines per-request types shared by the relay packages.
package model

import (
	"io"
	"net/http"
)

// RouteMatch classifies an inbound request. Exactly one value applies per request.
type RouteMatch int

const (
	// StaticRoute serves a file from the public directory.
	StaticRoute RouteMatch = iota
	// RunRoute proxies POST /api/run to the backend's POST /run.
	RunRoute
	// ChartRoute proxies GET /api/chart... to the backend's GET /chart...
	ChartRoute
)

func (r RouteMatch) String() string {
	switch r {
	case RunRoute:
		return "run"
	case ChartRoute:
		return "chart"
	default:
		return "static"
	}
}

// ProxyResponse is an upstream response whose body is still being streamed.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// RunResult is a fully buffered upstream response to a simulation run.
type RunResult struct {
	StatusCode int
	Body       []byte
}
