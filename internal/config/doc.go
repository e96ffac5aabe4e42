// Package config handles configuration loading for cortex-console.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every field has a default, so the console runs against a local
// backend with no file at all.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from the --config flag
//  2. Path from CORTEX_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/cortex/console.yaml (or console.toml)
//
// Files ending in .toml are parsed as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  token: "${CORTEX_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	connection:
//	  retry_interval: "3s"
//	  handshake_timeout: "10s"
//	preview:
//	  delay: "300ms"
//
// # Configuration Sections
//
// Backend endpoints:
//
//	backend:
//	  ws_url: "ws://localhost:8081/agent/chat"
//	  api_url: "http://localhost:8081"
//	  token: ""
//
// Secret vault (url and token default to the backend's):
//
//	vault:
//	  url: "http://localhost:8000"
//	  namespace: "team-a"
//
// Socket reconnect policy, a fixed interval with a bounded attempt count:
//
//	connection:
//	  max_attempts: 5
//	  retry_interval: "3s"
//
// Logging and metrics:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text or json
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
package config
