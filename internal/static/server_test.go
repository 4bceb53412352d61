package static

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"markov-relay/internal/config"
)

// newTestServer creates a Server over a temp dir seeded with files.
func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := &config.Config{Static: config.StaticConfig{PublicDir: root}}
	return NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	if err := s.Serve(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Serve(%q) error = %v", target, err)
	}
	return rec
}

func TestResolve(t *testing.T) {
	s := newTestServer(t, nil)
	root := s.Root()

	tests := []struct {
		urlPath string
		want    string
	}{
		{"/", filepath.Join(root, "index.html")},
		{"", filepath.Join(root, "index.html")},
		{"/index.html", filepath.Join(root, "index.html")},
		{"/app.js", filepath.Join(root, "app.js")},
		{"/css/./style.css", filepath.Join(root, "css", "style.css")},
		{"/css/../app.js", filepath.Join(root, "app.js")},
		{"/../../etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"/a/../../../etc/passwd", filepath.Join(root, "etc", "passwd")},
		{`/..\..\etc\passwd`, filepath.Join(root, "etc", "passwd")},
	}

	for _, tt := range tests {
		t.Run(tt.urlPath, func(t *testing.T) {
			if got := s.Resolve(tt.urlPath); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.urlPath, got, tt.want)
			}
		})
	}
}

func TestResolve_StaysUnderRoot(t *testing.T) {
	s := newTestServer(t, nil)
	prefix := s.Root() + string(filepath.Separator)

	for _, p := range []string{
		"/../../etc/passwd",
		"/..",
		"/../",
		"/./../x",
		"/deep/../../../../../../x",
		"../relative",
	} {
		got := s.Resolve(p)
		if !strings.HasPrefix(got, prefix) && got != s.Root() {
			t.Errorf("Resolve(%q) = %q escapes root %q", p, got, s.Root())
		}
	}
}

func TestServe_RootMatchesIndex(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "<h1>Markov</h1>"})

	root := serve(t, s, "/")
	index := serve(t, s, "/index.html")

	if root.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", root.Code, http.StatusOK)
	}
	if ct := root.Header().Get(echo.HeaderContentType); ct != "text/html" {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if root.Body.String() != index.Body.String() {
		t.Errorf("/ body = %q, /index.html body = %q", root.Body.String(), index.Body.String())
	}
	if root.Body.String() != "<h1>Markov</h1>" {
		t.Errorf("body = %q, want %q", root.Body.String(), "<h1>Markov</h1>")
	}
}

func TestServe_ContentTypes(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"style.css": "body{}",
		"app.js":    "console.log(1)",
		"page.html": "<p>",
		"notes.txt": "plain",
		"UPPER.CSS": "a{}",
		"img/a.png": "png",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/style.css", "text/css"},
		{"/app.js", "text/javascript"},
		{"/page.html", "text/html"},
		{"/notes.txt", "text/html"},
		{"/UPPER.CSS", "text/css"},
		{"/img/a.png", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, s, tt.path)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); ct != tt.want {
				t.Errorf("Content-Type = %q, want %q", ct, tt.want)
			}
		})
	}
}

func TestServe_NotFound(t *testing.T) {
	s := newTestServer(t, map[string]string{"index.html": "x", "sub/a.js": "y"})

	for _, p := range []string{"/does-not-exist.html", "/sub", "/sub/", "/../../etc/passwd"} {
		t.Run(p, func(t *testing.T) {
			rec := serve(t, s, p)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/plain" {
				t.Errorf("Content-Type = %q, want text/plain", ct)
			}
			if rec.Body.String() != "Not found" {
				t.Errorf("body = %q, want %q", rec.Body.String(), "Not found")
			}
		})
	}
}

func TestServe_IgnoresQueryString(t *testing.T) {
	s := newTestServer(t, map[string]string{"app.js": "ok"})

	rec := serve(t, s, "/app.js?v=2")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 %q", rec.Code, rec.Body.String(), "ok")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"/x/a.css":   "text/css",
		"a.js":       "text/javascript",
		"index.html": "text/html",
		"noext":      "text/html",
	}
	for name, want := range tests {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
