package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition over a run's final
// record.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "v < 0.2", "e <= 0.3", "m > 2",
	// "state == STRUCTURAL_COLLAPSE".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultRunTTL         = 30 * time.Minute
	DefaultMaxSteps       = 10000
	DefaultMaxValues      = 1000
	DefaultStreamInterval = 5 * time.Second
)

// Config holds the server configuration parsed from the `server:` section of
// the config file. Any `sim:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health service listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Runs bounds run requests and controls in-memory retention.
	Runs RunsConfig `yaml:"runs"`

	// Storage configures the optional on-disk run archive.
	Storage StorageConfig `yaml:"storage"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// Agents configures the decision stubs consulted by schedule runs.
	Agents AgentsConfig `yaml:"agents"`

	// StreamInterval is how often the WebSocket hub pushes the run list.
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// AgentsConfig holds the decision-stub credential.
type AgentsConfig struct {
	// KeyEnv names the environment variable holding the agent API key.
	// Without it every decision is tagged as a mock.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the agent API key resolved from the environment.
func (a AgentsConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// RunsConfig bounds run requests and in-memory retention.
type RunsConfig struct {
	// TTL is how long a run stays in memory after it was created. Archived
	// runs remain readable after eviction. Default: 30m.
	TTL time.Duration `yaml:"ttl"`

	// MaxSteps caps schedule steps and fixed-list inputs per request.
	MaxSteps int `yaml:"max_steps"`

	// MaxValues caps the probe values of one sweep request.
	MaxValues int `yaml:"max_values"`
}

// StorageConfig configures the run archive.
type StorageConfig struct {
	// Backend selects the archive: sqlite | none.
	Backend string `yaml:"backend"`

	// Path is the filesystem path of the SQLite database file.
	Path string `yaml:"path"`
}

// Enabled reports whether runs are archived.
func (s StorageConfig) Enabled() bool { return s.Backend == "sqlite" }

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Runs: RunsConfig{
				TTL:       DefaultRunTTL,
				MaxSteps:  DefaultMaxSteps,
				MaxValues: DefaultMaxValues,
			},
			StreamInterval: DefaultStreamInterval,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Runs.TTL < 0 {
		return fmt.Errorf("server.runs.ttl must not be negative")
	}
	if s.Runs.MaxSteps <= 0 {
		return fmt.Errorf("server.runs.max_steps must be positive")
	}
	if s.Runs.MaxValues <= 0 {
		return fmt.Errorf("server.runs.max_values must be positive")
	}
	switch s.Storage.Backend {
	case "sqlite":
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for the sqlite backend")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want sqlite|none", s.Storage.Backend)
	}
	if s.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
