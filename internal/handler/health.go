package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/client"
	"markov-relay/internal/config"
)

// backendCheckTimeout bounds the /health call made by the status endpoint.
const backendCheckTimeout = 2 * time.Second

// Version is a string type for dependency injection of the build version.
type Version string

// RelayStatus is the body of GET /relay/status.
type RelayStatus struct {
	Version      string `json:"version"`
	BackendURL   string `json:"backend_url"`
	Backend      string `json:"backend"` // "up" or "down"
	BackendError string `json:"backend_error,omitempty"`
	PublicDir    string `json:"public_dir"`
}

// HealthHandler serves the relay's own liveness and status endpoints.
type HealthHandler struct {
	backend   *client.BackendClient
	publicDir string
	version   Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, backend *client.BackendClient, v Version) *HealthHandler {
	return &HealthHandler{backend: backend, publicDir: cfg.Static.PublicDir, version: v}
}

// Healthz answers liveness checks without touching the backend.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status checks the backend's /health and reports it alongside the relay's
// version. It always answers 200: a down backend is reported, not an error.
func (h *HealthHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), backendCheckTimeout)
	defer cancel()

	st := RelayStatus{
		Version:    string(h.version),
		BackendURL: h.backend.BaseURL(),
		Backend:    "up",
		PublicDir:  h.publicDir,
	}
	if err := h.backend.Health(ctx); err != nil {
		st.Backend = "down"
		st.BackendError = err.Error()
	}

	return c.JSON(http.StatusOK, st)
}
