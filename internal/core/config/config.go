package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	coreagg "github.com/aevon-lab/rollup/internal/core/aggregation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config plus the resolved aggregation policy.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Schema      SchemaConfig      `koanf:"schema"`
	Aggregation AggregationConfig `koanf:"aggregation"`

	// Policy is populated by Load from aggregation.policy_path; nil when unset.
	Policy *coreagg.Policy `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type SchemaConfig struct {
	ProtoPath      string `koanf:"proto_path"`
	Message        string `koanf:"message"`
	TimestampField string `koanf:"timestamp_field"`
}

type AggregationConfig struct {
	PolicyPath     string `koanf:"policy_path"`
	Location       string `koanf:"location"`        // IANA zone for calendar boundaries
	SampleInterval string `koanf:"sample_interval"` // parsed and validated on startup
}

// TimeLocation resolves the configured calendar location.
func (c AggregationConfig) TimeLocation() (*time.Location, error) {
	if strings.TrimSpace(c.Location) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Location)
}

// SlogLevel maps the configured level to slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (must be debug, info, warn or error)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	if strings.TrimSpace(c.Schema.ProtoPath) == "" {
		return fmt.Errorf("schema.proto_path is required")
	}
	if _, err := os.Stat(c.Schema.ProtoPath); err != nil {
		return fmt.Errorf("schema.proto_path %q is not accessible: %w", c.Schema.ProtoPath, err)
	}
	if strings.TrimSpace(c.Schema.TimestampField) == "" {
		return fmt.Errorf("schema.timestamp_field is required")
	}

	if _, err := c.Aggregation.TimeLocation(); err != nil {
		return fmt.Errorf("invalid aggregation.location %q: %w", c.Aggregation.Location, err)
	}
	interval, err := time.ParseDuration(c.Aggregation.SampleInterval)
	if err != nil {
		return fmt.Errorf("invalid aggregation.sample_interval %q: %w", c.Aggregation.SampleInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("aggregation.sample_interval must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads the aggregation policy.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"server.max_body_size_mb":     1,
		"server.mode":                 "release",
		"log.level":                   "info",
		"log.format":                  "text",
		"schema.proto_path":           "./config/reading.proto",
		"schema.message":              "",
		"schema.timestamp_field":      "recorded_at",
		"aggregation.policy_path":     "",
		"aggregation.location":        "UTC",
		"aggregation.sample_interval": "15s",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("ROLLUP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ROLLUP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Aggregation.PolicyPath) != "" {
		policy, err := coreagg.LoadPolicy(cfg.Aggregation.PolicyPath, coreagg.DefaultReducers())
		if err != nil {
			return nil, fmt.Errorf("failed to load aggregation policy: %w", err)
		}
		cfg.Policy = policy
	}

	return &cfg, nil
}

// AggregationConfiguration returns the policy's configuration, or an empty one
// (every field summed) when no policy file is configured.
func (c *Config) AggregationConfiguration() *coreagg.Configuration {
	if c.Policy != nil {
		return c.Policy.Config
	}
	return coreagg.NewConfiguration()
}
