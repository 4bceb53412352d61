// Package static serves the browser UI from a single public directory.
package static

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/config"
)

const (
	indexFile   = "index.html"
	notFoundMsg = "Not found"
)

// contentTypes is the complete extension table; anything else is served as HTML.
var contentTypes = map[string]string{
	".css": "text/css",
	".js":  "text/javascript",
}

// Server reads assets from a fixed root. It keeps no per-request state.
type Server struct {
	root   string
	logger *slog.Logger
}

// NewServer creates a Server rooted at the configured public directory.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		root:   filepath.Clean(cfg.Static.PublicDir),
		logger: logger.With("component", "static"),
	}
}

// Root returns the directory assets are served from.
func (s *Server) Root() string {
	return s.root
}

// Resolve maps a URL path to a file path under the root. "/" maps to
// index.html. The path is cleaned as if rooted, which collapses dot
// segments and drops any ".." that would climb above the root. This is a
// sanitizer for local development, not a sandbox: symlinks inside the
// root are followed.
func (s *Server) Resolve(urlPath string) string {
	if urlPath == "" || urlPath == "/" {
		urlPath = "/" + indexFile
	}
	clean := path.Clean("/" + strings.ReplaceAll(urlPath, `\`, "/"))
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

// Serve writes the asset for the request path, or a plain-text 404.
func (s *Server) Serve(c echo.Context) error {
	filePath := s.Resolve(c.Request().URL.Path)

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.logger.Debug("asset not found", "path", filePath, "err", err)
		return c.Blob(http.StatusNotFound, echo.MIMETextPlain, []byte(notFoundMsg))
	}

	return c.Blob(http.StatusOK, ContentType(filePath), data)
}

// ContentType picks the response type from the file extension.
func ContentType(filePath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return ct
	}
	return echo.MIMETextHTML
}
