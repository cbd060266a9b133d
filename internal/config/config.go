package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "EVENTHIVE"

type Config struct {
	API         APIConfig
	Session     SessionConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Environment string
}

type APIConfig struct {
	BaseURL string
	// Timeout bounds each request. Zero leaves requests unbounded.
	Timeout time.Duration
	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64
}

type SessionConfig struct {
	Backend  string
	Path     string
	RedisURL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// Session backends accepted by SessionConfig.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Load reads configuration from an optional YAML file, a .env file in the
// working directory, and EVENTHIVE_* environment variables (highest priority).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		API: APIConfig{
			BaseURL:   strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout:   v.GetDuration("api.timeout"),
			RateLimit: v.GetFloat64("api.rate_limit"),
		},
		Session: SessionConfig{
			Backend:  strings.ToLower(v.GetString("session.backend")),
			Path:     v.GetString("session.path"),
			RedisURL: v.GetString("session.redis_url"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			Exporter:     v.GetString("tracing.exporter"),
			ServiceName:  v.GetString("tracing.service_name"),
			OTLPEndpoint: v.GetString("tracing.otlp_endpoint"),
			SampleRate:   v.GetFloat64("tracing.sample_rate"),
		},
		Environment: v.GetString("environment"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 0)
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("session.backend", BackendSQLite)
	v.SetDefault("session.path", defaultSessionPath())
	v.SetDefault("session.redis_url", "")
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.service_name", "eventhive-cli")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("environment", "development")
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".eventhive", "session.db")
	}
	return filepath.Join(dir, "eventhive", "session.db")
}

func (c Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("EVENTHIVE_API_BASE_URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("EVENTHIVE_API_BASE_URL must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("EVENTHIVE_API_TIMEOUT must not be negative")
	}
	if c.API.RateLimit < 0 {
		return errors.New("EVENTHIVE_API_RATE_LIMIT must not be negative")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Session.Path == "" {
			return errors.New("EVENTHIVE_SESSION_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return errors.New("EVENTHIVE_SESSION_REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("EVENTHIVE_SESSION_BACKEND must be memory, sqlite or redis, got %q", c.Session.Backend)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("EVENTHIVE_TRACING_SAMPLE_RATE must be between 0 and 1, got %f", c.Tracing.SampleRate)
	}
	return nil
}
