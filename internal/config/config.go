// ABOUTME: Configuration loading and parsing for coven-switchboard
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that points at the gateway config file.
const EnvConfigPath = "COVEN_SWITCHBOARD_CONFIG"

// Transports the inbound server can use.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the complete coven-switchboard configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Workers WorkersConfig `yaml:"workers" toml:"workers"`
	Sources SourcesConfig `yaml:"sources" toml:"sources"`
	Watch   WatchConfig   `yaml:"watch" toml:"watch"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the inbound MCP server settings
type ServerConfig struct {
	Transport    string `yaml:"transport" toml:"transport"`
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	Name         string `yaml:"name" toml:"name"`
	Instructions string `yaml:"instructions" toml:"instructions"`
}

// WorkersConfig holds worker timing configuration
type WorkersConfig struct {
	QueryTimeout    time.Duration `yaml:"-" toml:"-"`
	CallTimeout     time.Duration `yaml:"-" toml:"-"`
	StopGracePeriod time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	QueryTimeoutRaw    string `yaml:"query_timeout" toml:"query_timeout"`
	CallTimeoutRaw     string `yaml:"call_timeout" toml:"call_timeout"`
	StopGracePeriodRaw string `yaml:"stop_grace_period" toml:"stop_grace_period"`
}

// SourcesConfig controls where the MCP server list is found
type SourcesConfig struct {
	// Path is the server list used at startup. Empty means search.
	Path string `yaml:"path" toml:"path"`
	// SearchPaths replaces the default search order when set.
	SearchPaths []string `yaml:"search_paths" toml:"search_paths"`
}

// WatchConfig controls reloading when the active server list changes
type WatchConfig struct {
	Enabled     bool          `yaml:"enabled" toml:"enabled"`
	Debounce    time.Duration `yaml:"-" toml:"-"`
	DebounceRaw string        `yaml:"debounce" toml:"debounce"`
}

// AuthConfig holds bearer tokens accepted by the HTTP transport
type AuthConfig struct {
	Tokens []string `yaml:"tokens" toml:"tokens"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			HTTPAddr:  "127.0.0.1:8090",
			Name:      "coven-switchboard",
		},
		Workers: WorkersConfig{
			QueryTimeoutRaw:    "10s",
			CallTimeoutRaw:     "2m",
			StopGracePeriodRaw: "2s",
		},
		Watch: WatchConfig{
			Enabled:     true,
			DebounceRaw: "500ms",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	// Defaults always parse.
	_ = parseDurations(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML. Missing
// keys keep their defaults. Environment variables in the format ${VAR_NAME}
// are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if isTOML(path) {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads the config at explicit, or the first file on the search
// path. It returns Default() and an empty path when no file exists.
func LoadDefault(explicit string) (*Config, string, error) {
	for _, candidate := range configCandidates(explicit) {
		if _, err := os.Stat(candidate); err != nil {
			if candidate == explicit {
				return nil, "", fmt.Errorf("reading config file: %w", err)
			}
			continue
		}
		cfg, err := Load(candidate)
		if err != nil {
			return nil, candidate, err
		}
		return cfg, candidate, nil
	}
	return Default(), "", nil
}

func configCandidates(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var out []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		out = append(out, p)
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		}
	}
	if dir != "" {
		out = append(out,
			filepath.Join(dir, "coven-switchboard", "config.yaml"),
			filepath.Join(dir, "coven-switchboard", "config.toml"),
		)
	}
	return out
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.HTTPAddr == "" {
			return errors.New("server.http_addr is required for the http transport")
		}
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}

	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}

	if c.Workers.QueryTimeout <= 0 {
		return errors.New("workers.query_timeout must be positive")
	}
	if c.Workers.CallTimeout <= 0 {
		return errors.New("workers.call_timeout must be positive")
	}
	if c.Workers.StopGracePeriod <= 0 {
		return errors.New("workers.stop_grace_period must be positive")
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return errors.New("watch.debounce must be positive when watch is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	for i, tok := range c.Auth.Tokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("auth.tokens[%d] is empty", i)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"query_timeout", cfg.Workers.QueryTimeoutRaw, &cfg.Workers.QueryTimeout},
		{"call_timeout", cfg.Workers.CallTimeoutRaw, &cfg.Workers.CallTimeout},
		{"stop_grace_period", cfg.Workers.StopGracePeriodRaw, &cfg.Workers.StopGracePeriod},
		{"debounce", cfg.Watch.DebounceRaw, &cfg.Watch.Debounce},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
