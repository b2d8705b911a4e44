// Package config loads service settings from defaults, an optional YAML
// file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/pipeline"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels: FLOODPEAKS_SOURCE__SITE → source.site.
const EnvPrefix = "FLOODPEAKS_"

// EnvConfigFile names the optional YAML config file.
const EnvConfigFile = "FLOODPEAKS_CONFIG"

// Config holds all service settings.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Extract ExtractConfig `koanf:"extract"`
	Update  UpdateConfig  `koanf:"update"`
	Source  SourceConfig  `koanf:"source"`
	Kafka   KafkaConfig   `koanf:"kafka"`
	HTTP    HTTPConfig    `koanf:"http"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

type ExtractConfig struct {
	Thresholds    domain.ThresholdSet `koanf:"thresholds"`
	MinSeparation time.Duration       `koanf:"min_separation"`
	Precision     int                 `koanf:"precision"`
}

type UpdateConfig struct {
	OverlapBuffer   time.Duration `koanf:"overlap_buffer"`
	BootstrapWindow time.Duration `koanf:"bootstrap_window"`
}

// SourceConfig selects and parameterizes the series source.
// Kind is "usgs" (HTTP gauge feed) or "file" (local RDB/CSV file).
type SourceConfig struct {
	Kind      string        `koanf:"kind"`
	BaseURL   string        `koanf:"base_url"`
	Site      string        `koanf:"site"`
	Parameter string        `koanf:"parameter"`
	Format    string        `koanf:"format"`
	Timeout   time.Duration `koanf:"timeout"`
	Path      string        `koanf:"path"`
}

// KafkaConfig controls the optional merged-event notification sink.
type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// HTTPConfig controls the optional health/metrics server, useful during
// long backfill runs.
type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// defaults returns a Config with every default applied.
func defaults() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{Path: "floodpeaks.json"},
		Extract: ExtractConfig{
			Thresholds:    domain.ThresholdSet{MinorLow: 1.0, ModerateLow: 2.0, MajorLow: 3.0},
			MinSeparation: domain.DefaultMinSeparation,
			Precision:     domain.DefaultPrecision,
		},
		Update: UpdateConfig{
			OverlapBuffer:   pipeline.DefaultOverlapBuffer,
			BootstrapWindow: pipeline.DefaultBootstrapWindow,
		},
		Source: SourceConfig{
			Kind:      "usgs",
			BaseURL:   "https://waterservices.usgs.gov/nwis/iv/",
			Parameter: "00065",
			Format:    "json",
			Timeout:   30 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "flood-peak-events"},
		HTTP:  HTTPConfig{Addr: ":8080"},
	}
}

// Load builds a Config by layering defaults, the optional YAML file named by
// FLOODPEAKS_CONFIG, and FLOODPEAKS_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies the fatal-config rules. Anything wrong here must stop the
// run before a single byte is fetched or written.
func (c *Config) Validate() error {
	if err := c.Extract.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Extract.MinSeparation <= 0 {
		return fmt.Errorf("%w: extract.min_separation must be positive", domain.ErrConfig)
	}
	if c.Extract.Precision < 0 || c.Extract.Precision > 9 {
		return fmt.Errorf("%w: extract.precision must be in [0,9]", domain.ErrConfig)
	}
	if c.Update.OverlapBuffer <= 0 || c.Update.BootstrapWindow <= 0 {
		return fmt.Errorf("%w: update durations must be positive", domain.ErrConfig)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", domain.ErrConfig)
	}

	switch c.Source.Kind {
	case "usgs":
		if c.Source.BaseURL == "" || c.Source.Site == "" {
			return fmt.Errorf("%w: source.base_url and source.site are required for the usgs source", domain.ErrConfig)
		}
		if c.Source.Format != "json" && c.Source.Format != "rdb" {
			return fmt.Errorf("%w: source.format must be json or rdb, got %q", domain.ErrConfig, c.Source.Format)
		}
		if c.Source.Timeout <= 0 {
			return fmt.Errorf("%w: source.timeout must be positive", domain.ErrConfig)
		}
	case "file":
		if c.Source.Path == "" {
			return fmt.Errorf("%w: source.path is required for the file source", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source.kind %q", domain.ErrConfig, c.Source.Kind)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka.brokers and kafka.topic are required when kafka is enabled", domain.ErrConfig)
		}
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required when the http server is enabled", domain.ErrConfig)
	}
	return nil
}
