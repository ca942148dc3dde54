package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/logging"
	"github.com/GriffinCanCode/apmtrace/internal/sqltrace"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

// Config holds all agent configuration.
type Config struct {
	App       AppConfig       `yaml:"app" toml:"app"`
	CrossApp  CrossAppConfig  `yaml:"cross_application_tracer" toml:"cross_application_tracer"`
	Datastore DatastoreConfig `yaml:"datastore_tracer" toml:"datastore_tracer"`
	SlowSQL   SlowSQLConfig   `yaml:"slow_sql" toml:"slow_sql"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Backends  BackendConfig   `yaml:"backends" toml:"backends"`
	OTel      OTelConfig      `yaml:"otel" toml:"otel"`

	StrictIntegrity bool `envconfig:"APM_STRICT_INTEGRITY" default:"false" yaml:"strict_integrity" toml:"strict_integrity"`
}

// AppConfig identifies the instrumented application.
type AppConfig struct {
	Name string `envconfig:"APM_APP_NAME" default:"Go Application" yaml:"name" toml:"name"`
}

// CrossAppConfig holds cross-application tracing settings.
type CrossAppConfig struct {
	Enabled           bool     `envconfig:"APM_CAT_ENABLED" default:"false" yaml:"enabled" toml:"enabled"`
	CrossProcessID    string   `envconfig:"APM_CROSS_PROCESS_ID" yaml:"cross_process_id" toml:"cross_process_id"`
	EncodingKey       string   `envconfig:"APM_ENCODING_KEY" yaml:"encoding_key" toml:"encoding_key"`
	TrustedAccountIDs []string `envconfig:"APM_TRUSTED_ACCOUNT_IDS" yaml:"trusted_account_ids" toml:"trusted_account_ids"`
}

// DatastoreConfig holds datastore segment settings.
type DatastoreConfig struct {
	InstanceReporting     bool `envconfig:"APM_DATASTORE_INSTANCE_REPORTING" default:"true" yaml:"instance_reporting" toml:"instance_reporting"`
	DatabaseNameReporting bool `envconfig:"APM_DATASTORE_DATABASE_NAME_REPORTING" default:"true" yaml:"database_name_reporting" toml:"database_name_reporting"`
}

// SlowSQLConfig holds slow query sampling settings.
type SlowSQLConfig struct {
	Threshold        Duration `envconfig:"APM_SLOW_SQL_THRESHOLD" default:"500ms" yaml:"threshold" toml:"threshold"`
	MaxSamples       int      `envconfig:"APM_SLOW_SQL_MAX_SAMPLES" default:"10" yaml:"max_samples" toml:"max_samples"`
	ExplainEnabled   bool     `envconfig:"APM_EXPLAIN_ENABLED" default:"true" yaml:"explain_enabled" toml:"explain_enabled"`
	ExplainThreshold Duration `envconfig:"APM_EXPLAIN_THRESHOLD" default:"500ms" yaml:"explain_threshold" toml:"explain_threshold"`
	ExplainPerSecond float64  `envconfig:"APM_EXPLAIN_PER_SECOND" default:"1" yaml:"explain_per_second" toml:"explain_per_second"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// MetricsConfig holds Prometheus exposure settings.
type MetricsConfig struct {
	Namespace string `envconfig:"APM_METRICS_NAMESPACE" default:"apm" yaml:"namespace" toml:"namespace"`
}

// ServerConfig holds the demo server's HTTP settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// RateLimitConfig holds per-IP rate limiting for the demo server.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false" yaml:"enabled" toml:"enabled"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
}

// BackendConfig points the demo server at optional instrumented datastores
// and a downstream service. Empty values disable the backend.
type BackendConfig struct {
	RedisAddr   string `envconfig:"APM_REDIS_ADDR" yaml:"redis_addr" toml:"redis_addr"`
	PostgresDSN string `envconfig:"APM_POSTGRES_DSN" yaml:"postgres_dsn" toml:"postgres_dsn"`
	PeerURL     string `envconfig:"APM_PEER_URL" yaml:"peer_url" toml:"peer_url"`
}

// OTelConfig controls replaying transaction traces as OpenTelemetry spans.
type OTelConfig struct {
	Enabled  bool   `envconfig:"APM_OTEL_ENABLED" default:"false" yaml:"enabled" toml:"enabled"`
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" yaml:"endpoint" toml:"endpoint"`
}

// Duration is a time.Duration read from strings such as "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML file chosen by extension. Environment
// variables that are set override file values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	env, err := Load()
	if err != nil {
		return nil, err
	}
	overrideFromEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(env).Elem())
	return cfg, nil
}

// overrideFromEnv copies fields whose environment variable is set from env to dst.
func overrideFromEnv(dst, env reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct {
			overrideFromEnv(dst.Field(i), env.Field(i))
			continue
		}
		key := field.Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if _, ok := os.LookupEnv(key); ok {
			dst.Field(i).Set(env.Field(i))
		}
	}
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "Go Application"},
		Datastore: DatastoreConfig{
			InstanceReporting:     true,
			DatabaseNameReporting: true,
		},
		SlowSQL: SlowSQLConfig{
			Threshold:        Duration(500 * time.Millisecond),
			MaxSamples:       10,
			ExplainEnabled:   true,
			ExplainThreshold: Duration(500 * time.Millisecond),
			ExplainPerSecond: 1,
		},
		Logging:   LogConfig{Level: "info"},
		Metrics:   MetricsConfig{Namespace: "apm"},
		Server:    ServerConfig{Port: "8000", Host: "0.0.0.0"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200},
		OTel:      OTelConfig{Endpoint: "localhost:4317"},
	}
}

// TracerConfig derives the tracer configuration.
func (c *Config) TracerConfig() tracing.Config {
	return tracing.Config{
		AppName: c.App.Name,
		CrossApp: tracing.CrossAppConfig{
			Enabled:           c.CrossApp.Enabled,
			CrossProcessID:    c.CrossApp.CrossProcessID,
			EncodingKey:       c.CrossApp.EncodingKey,
			TrustedAccountIDs: c.CrossApp.TrustedAccountIDs,
		},
		Datastore: tracing.DatastoreConfig{
			InstanceReporting:     c.Datastore.InstanceReporting,
			DatabaseNameReporting: c.Datastore.DatabaseNameReporting,
		},
		StrictIntegrity: c.StrictIntegrity,
	}
}

// SQLConfig derives the slow SQL sampler configuration.
func (c *Config) SQLConfig() sqltrace.Config {
	cfg := sqltrace.DefaultConfig()
	cfg.Threshold = c.SlowSQL.Threshold.Std()
	cfg.MaxSamples = c.SlowSQL.MaxSamples
	cfg.ExplainEnabled = c.SlowSQL.ExplainEnabled
	cfg.ExplainThreshold = c.SlowSQL.ExplainThreshold.Std()
	cfg.ExplainPerSecond = c.SlowSQL.ExplainPerSecond
	return cfg
}

// LoggerConfig derives the logger configuration.
func (c *Config) LoggerConfig() logging.Config {
	if c.Logging.Development {
		cfg := logging.DevelopmentConfig()
		cfg.Level = c.Logging.Level
		return cfg
	}
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	return cfg
}
