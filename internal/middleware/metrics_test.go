package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/metrics"
)

// requestLabels returns the label sets recorded on markov_relay_requests_total.
func requestLabels(t *testing.T, m *metrics.Metrics) []map[string]string {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var out []map[string]string
	for _, f := range families {
		if f.GetName() != "markov_relay_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, labels)
		}
	}
	return out
}

// newMetricsEcho mirrors handler.RegisterRoutes: explicit routes plus a
// catch-all answering with status.
func newMetricsEcho(m *metrics.Metrics, status int) *echo.Echo {
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.Any("/*", func(c echo.Context) error {
		return c.NoContent(status)
	})
	return e
}

func TestMetricsMiddleware_RouteLabels(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		want   string
	}{
		{"run", http.MethodPost, "/api/run", "run"},
		{"run with query is static", http.MethodPost, "/api/run?x=1", "static"},
		{"chart with query", http.MethodGet, "/api/chart?t=1", "chart"},
		{"chart by prefix", http.MethodGet, "/api/chartfoo", "chart"},
		{"post to chart is static", http.MethodPost, "/api/chart", "static"},
		{"asset", http.MethodGet, "/app.js", "static"},
		{"explicit route keeps pattern", http.MethodGet, "/healthz", "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := newMetricsEcho(m, http.StatusOK)

			req := httptest.NewRequest(tt.method, tt.target, http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			got := requestLabels(t, m)
			if len(got) != 1 {
				t.Fatalf("recorded %d label sets, want 1: %v", len(got), got)
			}
			if got[0]["route"] != tt.want {
				t.Errorf("route = %q, want %q", got[0]["route"], tt.want)
			}
			if got[0]["status_code"] != "200" {
				t.Errorf("status_code = %q, want 200", got[0]["status_code"])
			}
		})
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()
	e := newMetricsEcho(m, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, f := range families {
		if f.GetName() == "markov_relay_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					return
				}
			}
		}
	}
	t.Error("expected markov_relay_request_duration_seconds with at least one sample")
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/run", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	for _, labels := range requestLabels(t, m) {
		if labels["route"] == "run" {
			if labels["status_code"] != "413" {
				t.Errorf("status_code = %q, want %q", labels["status_code"], "413")
			}
			return
		}
	}
	t.Error("expected markov_relay_requests_total with route=run")
}

func TestMetricsMiddleware_AbortedStream(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/*", func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		panic(http.ErrAbortHandler)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/chart?t=1", http.NoBody)
	func() {
		defer func() {
			if r := recover(); r != http.ErrAbortHandler {
				t.Errorf("recovered %v, want http.ErrAbortHandler to propagate", r)
			}
		}()
		e.ServeHTTP(httptest.NewRecorder(), req)
	}()

	for _, labels := range requestLabels(t, m) {
		if labels["route"] == "chart" {
			if labels["status_code"] != metrics.StatusAborted {
				t.Errorf("status_code = %q, want %q", labels["status_code"], metrics.StatusAborted)
			}
			return
		}
	}
	t.Error("expected markov_relay_requests_total with route=chart")
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()
	e := newMetricsEcho(m, http.StatusNotFound)

	req := httptest.NewRequest("XYZZY", "/index.html", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	for _, labels := range requestLabels(t, m) {
		if labels["route"] == "static" {
			if labels["method"] != "other" {
				t.Errorf("method = %q, want %q", labels["method"], "other")
			}
			if labels["status_code"] != "404" {
				t.Errorf("status_code = %q, want %q", labels["status_code"], "404")
			}
			return
		}
	}
	t.Error("expected markov_relay_requests_total with route=static and method=other")
}
