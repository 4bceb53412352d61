// Package config handles configuration loading from TOML, environment and CLI.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/markov-relay/config.toml",
	"configs/config.toml",
}

// reservedRoutes are paths the relay owns; the metrics endpoint may not shadow
// them or anything beneath them. The chart relay matches on a bare prefix, so
// "/api/chart-metrics" would shadow a chart request as well.
var reservedRoutes = []struct {
	path       string
	barePrefix bool
}{
	{"/api/run", false},
	{"/api/chart", true},
	{"/healthz", false},
	{"/relay/status", false},
}

// CLI holds command-line arguments parsed by Kong. Every flag can also be set
// from the environment, which is the primary way the relay is configured.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendHost string `kong:"help='Markov API host (overrides config).',env='MARKOV_API_HOST'"`
	BackendPort int    `kong:"help='Markov API port (overrides config).',env='MARKOV_API_PORT'"`
	PublicDir   string `kong:"help='Directory served as static assets (overrides config).',env='PUBLIC_DIR'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Static  StaticConfig  `toml:"static"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// BackendConfig locates the Markov computation API the relay forwards to.
type BackendConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"` // 0 means "use default" (8000)
	// ResponseHeaderTimeoutSeconds bounds the wait for upstream headers.
	// Zero leaves the wait unbounded.
	ResponseHeaderTimeoutSeconds int `toml:"response_header_timeout_seconds"`
}

// StaticConfig holds the static asset root.
type StaticConfig struct {
	PublicDir string `toml:"public_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load builds the configuration from an optional TOML file and CLI/env overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/markov-relay/config.toml then configs/config.toml. Running without any
// config file is allowed; defaults then apply.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendHost != "" {
		c.Backend.Host = cli.BackendHost
	}
	if cli.BackendPort != 0 {
		c.Backend.Port = cli.BackendPort
	}
	if cli.PublicDir != "" {
		c.Static.PublicDir = cli.PublicDir
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Backend.Port < 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port must be 0–65535; got %d", c.Backend.Port)
	}
	if strings.ContainsAny(c.Backend.Host, "/?#") {
		return fmt.Errorf("backend.host must be a bare host name; got %q", c.Backend.Host)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Backend.ResponseHeaderTimeoutSeconds < 0 {
		return fmt.Errorf("backend.response_header_timeout_seconds must be non-negative; got %d", c.Backend.ResponseHeaderTimeoutSeconds)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, r := range reservedRoutes {
			if shadows(p, r.path, r.barePrefix) {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, r.path)
			}
		}
	}

	return nil
}

func shadows(p, route string, barePrefix bool) bool {
	if barePrefix {
		return strings.HasPrefix(p, route)
	}
	return p == route || strings.HasPrefix(p, route+"/")
}

// setDefaults fills zero-valued fields. Ports of zero mean "unset" because TOML
// cannot distinguish an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Backend.Host == "" {
		c.Backend.Host = "localhost"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8000
	}
	if c.Static.PublicDir == "" {
		c.Static.PublicDir = "web/public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the backend address as host:port, bracketing IPv6 literals.
func (c *BackendConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the plain-HTTP origin of the backend.
func (c *BackendConfig) BaseURL() string {
	return "http://" + c.Addr()
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// LogSource records where configuration came from.
func (c *Config) LogSource(logger *slog.Logger) {
	if c.filePath == "" {
		logger.Info("no config file found; using defaults and environment")
		return
	}
	logger.Info("loaded config file", "path", c.filePath)
}
