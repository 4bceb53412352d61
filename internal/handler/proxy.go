package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/metrics"
	"markov-relay/internal/service"
)

// unreachableBody is the fixed reply for any failure before the upstream
// response could be relayed.
var unreachableBody = []byte(`{"error":"Failed to reach API"}`)

// hopByHopHeaders describe the upstream connection, not the chart, and are
// not copied to the client.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler relays the run and chart routes to the Markov API backend.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. m may be nil.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Run forwards a simulation request. The backend reply is buffered in full
// and written with the backend's status and a JSON content type.
func (h *ProxyHandler) Run(c echo.Context) error {
	req := c.Request()

	res, err := h.service.ForwardRun(req.Context(), req.Body)
	if err != nil {
		return h.unreachable(c, err)
	}

	return c.Blob(res.StatusCode, echo.MIMEApplicationJSON, res.Body)
}

// Chart forwards a chart request and streams the image back. Status and
// upstream headers reach the client as soon as they arrive, and every chunk
// read from upstream is flushed before the next read.
func (h *ProxyHandler) Chart(c echo.Context) error {
	req := c.Request()

	resp, err := h.service.ForwardChart(req.Context(), req.URL.EscapedPath(), req.URL.RawQuery)
	if err != nil {
		return h.unreachable(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	copyEndToEndHeaders(c.Response().Header(), resp.Header)

	fw := &flushWriter{w: c.Response(), rc: http.NewResponseController(c.Response())}
	c.Response().WriteHeader(resp.StatusCode)
	err = fw.rc.Flush()
	if err == nil {
		_, err = io.Copy(fw, resp.Body)
	}
	if h.metrics != nil {
		h.metrics.AddStreamed(fw.n)
	}

	// Headers are already on the wire, so a failure here cannot become a JSON
	// error. Abort the connection so the client sees a truncated response
	// rather than a body that looks complete.
	if err != nil {
		h.logger.Error("streaming chart body",
			"err", err,
			"path", req.URL.Path,
			"bytes", fw.n,
		)
		panic(http.ErrAbortHandler)
	}

	return nil
}

func (h *ProxyHandler) unreachable(c echo.Context, err error) error {
	level := slog.LevelError
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	h.logger.Log(c.Request().Context(), level, "proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	return c.Blob(http.StatusBadGateway, echo.MIMEApplicationJSON, unreachableBody)
}

// copyEndToEndHeaders copies upstream headers verbatim, skipping hop-by-hop
// headers and any header the upstream listed in Connection.
func copyEndToEndHeaders(dst, src http.Header) {
	skip := make(map[string]bool, len(hopByHopHeaders))
	for _, h := range hopByHopHeaders {
		skip[http.CanonicalHeaderKey(h)] = true
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				skip[http.CanonicalHeaderKey(name)] = true
			}
		}
	}

	for key, vals := range src {
		if skip[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
}

// flushWriter pushes every write to the client immediately.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
	n  int64
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.n += int64(n)
	if err != nil {
		return n, err
	}
	return n, f.rc.Flush()
}
