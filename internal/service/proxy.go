// Package service implements the two relay strategies: a fully buffered JSON
// round trip for simulation runs and a streamed pass-through for chart images.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"markov-relay/internal/client"
	"markov-relay/internal/model"
)

// ErrUpstreamUnreachable is returned when the backend could not be reached or
// failed before a complete response was available to relay.
var ErrUpstreamUnreachable = errors.New("failed to reach API")

const (
	runPath      = "/run"
	apiPrefix    = "/api"
	jsonMIMEType = "application/json"
)

// ProxyService forwards relay requests to the Markov API backend.
type ProxyService struct {
	client *client.BackendClient
	logger *slog.Logger
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.BackendClient, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client: c,
		logger: logger.With("component", "proxy_service"),
	}
}

// ForwardRun drains body, POSTs it to the backend's /run as JSON and buffers
// the whole upstream reply. Any failure along the way, including one while
// reading the upstream body, yields ErrUpstreamUnreachable so that the caller
// never relays a partial document.
func (s *ProxyService) ForwardRun(ctx context.Context, body io.Reader) (*model.RunResult, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read run payload: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", jsonMIMEType)

	s.logger.Debug("forwarding run", "bytes", len(payload))

	resp, err := s.client.Send(ctx, http.MethodPost, runPath, header, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read upstream body: %w", ErrUpstreamUnreachable, err)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return &model.RunResult{StatusCode: status, Body: data}, nil
}

// ForwardChart issues a bodyless GET for the chart and returns as soon as the
// upstream headers arrive. The body is left unread for the caller to stream
// and close.
func (s *ProxyService) ForwardChart(ctx context.Context, requestPath, rawQuery string) (*model.ProxyResponse, error) {
	target := ChartPath(requestPath, rawQuery)

	s.logger.Debug("forwarding chart", "target", target)

	resp, err := s.client.Send(ctx, http.MethodGet, target, nil, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	return resp, nil
}

// ChartPath maps an inbound chart path to the backend path by dropping the
// leading /api segment. The query string is carried over untouched.
func ChartPath(requestPath, rawQuery string) string {
	p := strings.TrimPrefix(requestPath, apiPrefix)
	if rawQuery != "" {
		p += "?" + rawQuery
	}
	return p
}
