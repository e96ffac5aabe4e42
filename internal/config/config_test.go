// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, durations and path resolution

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "console.yaml", `
backend:
  ws_url: "wss://agents.example.com/agent/chat"
  api_url: "https://agents.example.com"
  token: "abc"

vault:
  url: "https://vault.example.com"
  namespace: "team-a"

connection:
  max_attempts: 7
  retry_interval: "2s"
  handshake_timeout: "5s"

preview:
  delay: "500ms"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  addr: ":9100"
  path: "/metrics"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.WSURL != "wss://agents.example.com/agent/chat" {
		t.Errorf("Backend.WSURL = %q", cfg.Backend.WSURL)
	}
	if cfg.Vault.URL != "https://vault.example.com" {
		t.Errorf("Vault.URL = %q", cfg.Vault.URL)
	}
	if cfg.Vault.Namespace != "team-a" {
		t.Errorf("Vault.Namespace = %q, want %q", cfg.Vault.Namespace, "team-a")
	}
	if cfg.Vault.Token != "abc" {
		t.Errorf("Vault.Token = %q, want backend token %q", cfg.Vault.Token, "abc")
	}
	if cfg.Connection.MaxAttempts != 7 {
		t.Errorf("Connection.MaxAttempts = %d, want 7", cfg.Connection.MaxAttempts)
	}
	if cfg.Connection.RetryInterval != 2*time.Second {
		t.Errorf("Connection.RetryInterval = %v, want 2s", cfg.Connection.RetryInterval)
	}
	if cfg.Connection.HandshakeTimeout != 5*time.Second {
		t.Errorf("Connection.HandshakeTimeout = %v, want 5s", cfg.Connection.HandshakeTimeout)
	}
	if cfg.Preview.Delay != 500*time.Millisecond {
		t.Errorf("Preview.Delay = %v, want 500ms", cfg.Preview.Delay)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "console.toml", `
[backend]
ws_url = "ws://localhost:9000/agent/chat"
api_url = "http://localhost:9000"

[connection]
max_attempts = 3
retry_interval = "1s"

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.WSURL != "ws://localhost:9000/agent/chat" {
		t.Errorf("Backend.WSURL = %q", cfg.Backend.WSURL)
	}
	if cfg.Connection.MaxAttempts != 3 {
		t.Errorf("Connection.MaxAttempts = %d, want 3", cfg.Connection.MaxAttempts)
	}
	if cfg.Connection.RetryInterval != time.Second {
		t.Errorf("Connection.RetryInterval = %v, want 1s", cfg.Connection.RetryInterval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Vault.URL != "http://localhost:9000" {
		t.Errorf("Vault.URL = %q, want backend api_url", cfg.Vault.URL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "console.yaml", "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Backend.WSURL != want.Backend.WSURL {
		t.Errorf("Backend.WSURL = %q, want %q", cfg.Backend.WSURL, want.Backend.WSURL)
	}
	if cfg.Connection.MaxAttempts != 5 {
		t.Errorf("Connection.MaxAttempts = %d, want 5", cfg.Connection.MaxAttempts)
	}
	if cfg.Connection.RetryInterval != 3*time.Second {
		t.Errorf("Connection.RetryInterval = %v, want 3s", cfg.Connection.RetryInterval)
	}
	if cfg.Preview.Delay != 300*time.Millisecond {
		t.Errorf("Preview.Delay = %v, want 300ms", cfg.Preview.Delay)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CORTEX_TEST_TOKEN", "from-env")
	t.Setenv("CORTEX_TEST_HOST", "agents.internal")

	path := writeConfig(t, "console.yaml", `
backend:
  ws_url: "ws://${CORTEX_TEST_HOST}/agent/chat"
  api_url: "http://${CORTEX_TEST_HOST}"
  token: "${CORTEX_TEST_TOKEN}"
vault:
  namespace: "${CORTEX_TEST_UNSET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.Token != "from-env" {
		t.Errorf("Backend.Token = %q, want %q", cfg.Backend.Token, "from-env")
	}
	if cfg.Backend.WSURL != "ws://agents.internal/agent/chat" {
		t.Errorf("Backend.WSURL = %q", cfg.Backend.WSURL)
	}
	if cfg.Vault.Namespace != "" {
		t.Errorf("Vault.Namespace = %q, want empty for unset var", cfg.Vault.Namespace)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad yaml", "c.yaml", "backend: [", "parsing config file"},
		{"bad toml", "c.toml", "[backend\n", "parsing config file"},
		{"bad duration", "c.yaml", "connection:\n  retry_interval: soon\n", "retry_interval"},
		{"http socket url", "c.yaml", "backend:\n  ws_url: http://x/agent/chat\n", "backend.ws_url must use ws or wss"},
		{"ws api url", "c.yaml", "backend:\n  api_url: ws://x\n", "backend.api_url must use http or https"},
		{"missing host", "c.yaml", "vault:\n  url: http://\n", "vault.url is missing a host"},
		{"negative delay", "c.yaml", "preview:\n  delay: -1s\n", "preview.delay"},
		{"bad level", "c.yaml", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "c.yaml", "logging:\n  format: xml\n", "logging.format"},
		{"bad metrics path", "c.yaml", "metrics:\n  enabled: true\n  path: metrics\n", "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading config file error", err)
	}
}

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestResolve(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(EnvConfigPath, "")

	if got := Resolve(""); got != "" {
		t.Errorf("Resolve() with no files = %q, want empty", got)
	}

	if err := os.MkdirAll(filepath.Join(xdg, "cortex"), 0755); err != nil {
		t.Fatal(err)
	}
	xdgPath := filepath.Join(xdg, "cortex", "console.toml")
	if err := os.WriteFile(xdgPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != xdgPath {
		t.Errorf("Resolve() = %q, want XDG path %q", got, xdgPath)
	}

	t.Setenv(EnvConfigPath, "/etc/cortex.yaml")
	if got := Resolve(""); got != "/etc/cortex.yaml" {
		t.Errorf("Resolve() = %q, want env path", got)
	}

	if got := Resolve("./flag.yaml"); got != "./flag.yaml" {
		t.Errorf("Resolve() = %q, want explicit path", got)
	}
}

func TestDefaultPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	want := filepath.Join(xdg, "cortex", "console.yaml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
