// ABOUTME: Configuration loading and parsing for printauth
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

// Defaults applied by Load when a field is unset.
const (
	DefaultInterval       = 5 * time.Second
	DefaultProbeTimeout   = 10 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultDriver         = "sqlite"
	DefaultMetricsPath    = "/metrics"
	DefaultNATSSubject    = "printauth.events"
	minJWTSecretLength    = 32
)

// Config represents the complete printauth configuration
type Config struct {
	Application  string             `yaml:"application" toml:"application"`
	AppUser      string             `yaml:"appuser" toml:"appuser"`
	Printers     PrintersConfig     `yaml:"printers" toml:"printers"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" toml:"orchestrator"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Tailscale    TailscaleConfig    `yaml:"tailscale" toml:"tailscale"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
	NATS         NATSConfig         `yaml:"nats" toml:"nats"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" toml:"metrics"`
}

// PrintersConfig lists the devices to manage
type PrintersConfig struct {
	Hosts []string `yaml:"hosts" toml:"hosts"`
}

// OrchestratorConfig holds cycle timing
type OrchestratorConfig struct {
	Interval       time.Duration `yaml:"-" toml:"-"`
	ProbeTimeout   time.Duration `yaml:"-" toml:"-"`
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	IntervalRaw       string `yaml:"interval" toml:"interval"`
	ProbeTimeoutRaw   string `yaml:"probe_timeout" toml:"probe_timeout"`
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// DatabaseConfig selects the credential store
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite | postgres
	Path   string `yaml:"path" toml:"path"`     // sqlite file
	DSN    string `yaml:"dsn" toml:"dsn"`       // postgres connection string
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	// DialPrinters routes printer traffic through the tailnet as well.
	DialPrinters bool `yaml:"dial_printers" toml:"dial_printers"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// NATSConfig enables event forwarding when URL is set
type NATSConfig struct {
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
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

// DefaultPath returns the path to the config file.
// Priority: PRINTAUTH_CONFIG env var > XDG_CONFIG_HOME/printauth/config.yaml > ~/.config/printauth/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("PRINTAUTH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "printauth", "config.yaml")
}

// DataDir returns the printauth data directory.
// Priority: XDG_DATA_HOME/printauth > ~/.local/share/printauth
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "printauth")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
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
	if c.Orchestrator.Interval == 0 {
		c.Orchestrator.Interval = DefaultInterval
	}
	if c.Orchestrator.ProbeTimeout == 0 {
		c.Orchestrator.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Orchestrator.RequestTimeout == 0 {
		c.Orchestrator.RequestTimeout = DefaultRequestTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Driver == DefaultDriver && c.Database.Path == "" {
		c.Database.Path = filepath.Join(DataDir(), "printauth.db")
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultNATSSubject
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Application == "" {
		return errors.New("application is required")
	}
	if c.AppUser == "" {
		return errors.New("appuser is required")
	}
	if err := validateHosts(c.Printers.Hosts); err != nil {
		return err
	}

	if c.Orchestrator.Interval < 0 || c.Orchestrator.ProbeTimeout < 0 || c.Orchestrator.RequestTimeout < 0 {
		return errors.New("orchestrator durations must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}

	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Tailscale.DialPrinters && !c.Tailscale.Enabled {
		return errors.New("tailscale.dial_printers requires tailscale.enabled")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}

	return nil
}

// validateHosts requires at least one host, each a bare host or host:port.
func validateHosts(hosts []string) error {
	if len(hosts) == 0 {
		return errors.New("printers.hosts must list at least one host")
	}
	seen := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if strings.TrimSpace(h) == "" {
			return errors.New("printers.hosts contains an empty host")
		}
		if strings.Contains(h, "://") || strings.Contains(h, "/") {
			return fmt.Errorf("printers.hosts entry %q must be a host or host:port, not a URL", h)
		}
		if seen[h] {
			return fmt.Errorf("printers.hosts lists %q more than once", h)
		}
		seen[h] = true
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
		{"interval", cfg.Orchestrator.IntervalRaw, &cfg.Orchestrator.Interval},
		{"probe_timeout", cfg.Orchestrator.ProbeTimeoutRaw, &cfg.Orchestrator.ProbeTimeout},
		{"request_timeout", cfg.Orchestrator.RequestTimeoutRaw, &cfg.Orchestrator.RequestTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("parsing %s %q: must be positive", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
