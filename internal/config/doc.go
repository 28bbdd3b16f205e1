// Package config handles configuration loading for printauth.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PRINTAUTH_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/printauth/config.yaml
//  3. ~/.config/printauth/config.yaml
//
// Files ending in .toml are decoded with BurntSushi/toml; anything else is YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}. Unset
// variables expand to the empty string.
//
//	auth:
//	  jwt_secret: "${PRINTAUTH_JWT_SECRET}"
//
// # Example
//
//	application: "printauth"
//	appuser: "ops"
//
//	printers:
//	  hosts:
//	    - "192.168.1.20"
//	    - "printer-2.lan:8443"
//
//	orchestrator:
//	  interval: "5s"         # cycle period
//	  probe_timeout: "10s"   # reachability probe budget
//	  request_timeout: "10s" # pairing and status calls
//
//	database:
//	  driver: "sqlite"       # sqlite, postgres
//	  path: "~/.local/share/printauth/printauth.db"
//	  dsn: ""                # postgres only
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	tailscale:
//	  enabled: false
//	  hostname: "printauth"
//	  auth_key: "${TS_AUTHKEY}"
//	  dial_printers: false   # true routes printer traffic through the tailnet
//
// Enabling tailscale only moves the API listener onto the tailnet. Printers on
// the local network stay reachable directly; set dial_printers when they are
// only reachable through the tailnet (a subnet router or tailnet devices).
//
//	nats:
//	  url: ""                # empty disables forwarding
//	  subject: "printauth.events"
//
//	logging:
//	  level: "info"          # debug, info, warn, error
//	  format: "text"         # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load applies defaults and then Validate, which reports the first problem:
// missing application or appuser, an empty or duplicated host list, a
// database driver without its path or DSN, a JWT secret shorter than 32
// bytes, or an unknown log level or format.
package config
