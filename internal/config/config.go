// Package config loads service settings from defaults, an optional YAML
// file, and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName  string `yaml:"service_name"`
	Port         string `yaml:"port"`
	DatabaseURL  string `yaml:"database_url"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Mutations are Create and Purchase. A zero rate disables limiting.
	MutationRatePerMinute float64 `yaml:"mutation_rate_per_minute"`
	MutationBurst         int     `yaml:"mutation_burst"`

	ReadLatency   time.Duration `yaml:"read_latency"`
	WriteLatency  time.Duration `yaml:"write_latency"`
	LatencyJitter time.Duration `yaml:"latency_jitter"`
	FailureRate   float64       `yaml:"failure_rate"`

	SeedCatalog bool   `yaml:"seed_catalog"`
	SeedFile    string `yaml:"seed_file"`
}

func Default() Config {
	return Config{
		ServiceName:           "nftmarket-catalog",
		Port:                  "8081",
		LogLevel:              "info",
		LogFormat:             "json",
		MutationRatePerMinute: 60,
		MutationBurst:         10,
		ReadLatency:           time.Second,
		WriteLatency:          2 * time.Second,
		SeedCatalog:           true,
	}
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SERVICE_NAME", &c.ServiceName)
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	str("SEED_FILE", &c.SeedFile)

	var err error
	parse := func(key string, fn func(string) error) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		if perr := fn(v); perr != nil {
			err = fmt.Errorf("env %s: %w", key, perr)
		}
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(v string) error {
			d, err := time.ParseDuration(v)
			*dst = d
			return err
		}
	}
	float := func(dst *float64) func(string) error {
		return func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*dst = f
			return err
		}
	}

	parse("MUTATION_RATE_PER_MINUTE", float(&c.MutationRatePerMinute))
	parse("MUTATION_BURST", func(v string) error {
		n, err := strconv.Atoi(v)
		c.MutationBurst = n
		return err
	})
	parse("READ_LATENCY", duration(&c.ReadLatency))
	parse("WRITE_LATENCY", duration(&c.WriteLatency))
	parse("LATENCY_JITTER", duration(&c.LatencyJitter))
	parse("FAILURE_RATE", float(&c.FailureRate))
	parse("SEED_CATALOG", func(v string) error {
		b, err := strconv.ParseBool(v)
		c.SeedCatalog = b
		return err
	})
	return err
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port must be set")
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("config: failure_rate %v outside [0, 1]", c.FailureRate)
	}
	if c.ReadLatency < 0 || c.WriteLatency < 0 || c.LatencyJitter < 0 {
		return fmt.Errorf("config: latencies must not be negative")
	}
	if c.MutationRatePerMinute > 0 && c.MutationBurst < 1 {
		return fmt.Errorf("config: mutation_burst must be at least 1 when rate limiting")
	}
	return nil
}
