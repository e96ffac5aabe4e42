// ABOUTME: Configuration loading and parsing for cortex-console
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "CORTEX_CONFIG"

// Config represents the complete cortex-console configuration
type Config struct {
	Backend    BackendConfig    `yaml:"backend" toml:"backend"`
	Vault      VaultConfig      `yaml:"vault" toml:"vault"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Preview    PreviewConfig    `yaml:"preview" toml:"preview"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// BackendConfig points at the agent backend
type BackendConfig struct {
	// WSURL is the chat socket, e.g. ws://localhost:8081/agent/chat
	WSURL string `yaml:"ws_url" toml:"ws_url"`
	// APIURL serves the MCP server registry and model preference endpoints
	APIURL string `yaml:"api_url" toml:"api_url"`
	Token  string `yaml:"token" toml:"token"`
}

// VaultConfig holds secret vault settings
type VaultConfig struct {
	// URL defaults to backend.api_url
	URL       string `yaml:"url" toml:"url"`
	Namespace string `yaml:"namespace" toml:"namespace"`
	// Token defaults to backend.token
	Token string `yaml:"token" toml:"token"`
}

// ConnectionConfig holds the socket reconnect policy
type ConnectionConfig struct {
	MaxAttempts      uint          `yaml:"max_attempts" toml:"max_attempts"`
	RetryInterval    time.Duration `yaml:"-" toml:"-"`
	HandshakeTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	RetryIntervalRaw    string `yaml:"retry_interval" toml:"retry_interval"`
	HandshakeTimeoutRaw string `yaml:"handshake_timeout" toml:"handshake_timeout"`
}

// PreviewConfig holds live browser preview settings
type PreviewConfig struct {
	Delay    time.Duration `yaml:"-" toml:"-"`
	DelayRaw string        `yaml:"delay" toml:"delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Resolve picks the config file to load: the explicit path if given, then
// $CORTEX_CONFIG, then $XDG_CONFIG_HOME/cortex/console.yaml (or .toml).
// Returns "" when no file exists, in which case Default applies.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}

	dir := configDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"console.yaml", "console.yml", "console.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath is where init writes a new config file.
func DefaultPath() string {
	dir := configDir()
	if dir == "" {
		return "console.yaml"
	}
	return filepath.Join(dir, "console.yaml")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "cortex")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Backend.WSURL == "" {
		c.Backend.WSURL = "ws://localhost:8081/agent/chat"
	}
	if c.Backend.APIURL == "" {
		c.Backend.APIURL = "http://localhost:8081"
	}
	if c.Vault.URL == "" {
		c.Vault.URL = c.Backend.APIURL
	}
	if c.Vault.Token == "" {
		c.Vault.Token = c.Backend.Token
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = 5
	}
	if c.Connection.RetryInterval == 0 {
		c.Connection.RetryInterval = 3 * time.Second
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = 10 * time.Second
	}
	if c.Preview.Delay == 0 {
		c.Preview.Delay = 300 * time.Millisecond
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9464"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := checkURL("backend.ws_url", c.Backend.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("backend.api_url", c.Backend.APIURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("vault.url", c.Vault.URL, "http", "https"); err != nil {
		return err
	}

	if c.Connection.RetryInterval < 0 {
		return fmt.Errorf("connection.retry_interval must be positive")
	}
	if c.Connection.HandshakeTimeout < 0 {
		return fmt.Errorf("connection.handshake_timeout must be positive")
	}
	if c.Preview.Delay < 0 {
		return fmt.Errorf("preview.delay must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s is missing a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use %s scheme", field, strings.Join(schemes, " or "))
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"retry_interval", cfg.Connection.RetryIntervalRaw, &cfg.Connection.RetryInterval},
		{"handshake_timeout", cfg.Connection.HandshakeTimeoutRaw, &cfg.Connection.HandshakeTimeout},
		{"delay", cfg.Preview.DelayRaw, &cfg.Preview.Delay},
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
