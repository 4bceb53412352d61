// Package client talks to the Markov API backend over plain HTTP.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"markov-relay/internal/config"
	"markov-relay/internal/metrics"
	"markov-relay/internal/model"
)

const healthPath = "/health"

// BackendClient sends requests to one Markov API origin. Every request uses
// its own TCP connection, which is closed once the response body is.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient for the configured backend.
// The metrics parameter is optional; pass nil to disable upstream metrics.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		DisableKeepAlives:     true,
		DisableCompression:    true, // relay upstream bytes as sent
		ResponseHeaderTimeout: time.Duration(cfg.Backend.ResponseHeaderTimeoutSeconds) * time.Second,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
	}

	return &BackendClient{
		baseURL: cfg.Backend.BaseURL(),
		// No overall Timeout: it would also cut off streamed chart bodies.
		httpClient: &http.Client{Transport: transport},
		logger:     logger.With("component", "backend_client"),
		metrics:    m,
	}
}

// BaseURL returns the backend origin requests are sent to.
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// Send issues method against target, a backend path with optional query,
// and returns once response headers have arrived. The caller must close the body.
func (c *BackendClient) Send(ctx context.Context, method, target string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request", "method", method, "target", target)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	wait := time.Since(start)

	if err != nil {
		c.observe(req.URL.Path, 0, wait)
		return nil, fmt.Errorf("upstream %s %s: %w", method, req.URL.Path, err)
	}
	c.observe(req.URL.Path, resp.StatusCode, wait)

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// Health reports whether the backend answers GET /health with a 2xx status.
func (c *BackendClient) Health(ctx context.Context) error {
	resp, err := c.Send(ctx, http.MethodGet, healthPath, nil, http.NoBody)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *BackendClient) observe(path string, code int, wait time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveUpstream(pathLabel(path), code, wait)
}

// pathLabel keeps the first path segment so chart sub-paths share a series.
func pathLabel(p string) string {
	rest := strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return "/" + rest
}
