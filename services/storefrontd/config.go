package storefrontd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"storefront/observability/logging"
	telemetry "storefront/observability/otel"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for storefrontd.
type Config struct {
	ListenAddress   string              `yaml:"listen"`
	Environment     string              `yaml:"env"`
	DataDir         string              `yaml:"data_dir"`
	GenesisPath     string              `yaml:"genesis"`
	ShutdownTimeout Duration            `yaml:"shutdown_timeout"`
	Auth            AuthConfig          `yaml:"auth"`
	RateLimit       RateLimitConfig     `yaml:"rate_limit"`
	Idempotency     IdempotencyConfig   `yaml:"idempotency"`
	Indexer         IndexerConfig       `yaml:"indexer"`
	Logging         *logging.FileConfig `yaml:"logging"`
	Telemetry       telemetry.Config    `yaml:"telemetry"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Issuer        string   `yaml:"issuer"`
	Audience      []string `yaml:"audience"`
	HMACSecret    string   `yaml:"hmac_secret"`
	HMACSecretEnv string   `yaml:"hmac_secret_env"`
	MaxSkew       Duration `yaml:"max_skew"`
}

// RateLimitConfig bounds mint requests per caller.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// IdempotencyConfig locates the bbolt response cache.
type IdempotencyConfig struct {
	Path string   `yaml:"path"`
	TTL  Duration `yaml:"ttl"`
}

// IndexerConfig selects the SQL backend for event history.
type IndexerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.GenesisPath == "" {
		cfg.GenesisPath = "services/storefrontd/genesis.toml"
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.Auth.MaxSkew.Duration == 0 {
		cfg.Auth.MaxSkew.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 60
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.Idempotency.TTL.Duration == 0 {
		cfg.Idempotency.TTL.Duration = 24 * time.Hour
	}
	if cfg.Indexer.Driver == "" {
		cfg.Indexer.Driver = "sqlite"
	}
	if cfg.Indexer.DSN == "" && cfg.Indexer.Driver == "sqlite" {
		cfg.Indexer.DSN = "file::memory:?cache=shared"
	}
}

func (a *AuthConfig) normalise() error {
	if strings.TrimSpace(a.HMACSecret) != "" {
		return nil
	}
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		secret := strings.TrimSpace(os.Getenv(env))
		if secret == "" {
			return fmt.Errorf("environment variable %s is empty", env)
		}
		a.HMACSecret = secret
	}
	return nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth hmac secret must be configured")
	}
	if len(cfg.Auth.HMACSecret) < 32 {
		return fmt.Errorf("auth hmac secret must be at least 32 bytes")
	}
	switch cfg.Indexer.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported indexer driver %q", cfg.Indexer.Driver)
	}
	if strings.TrimSpace(cfg.Indexer.DSN) == "" {
		return fmt.Errorf("indexer dsn must be configured")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0,1]")
	}
	return nil
}
