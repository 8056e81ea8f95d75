package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/raysh454/sitelens/internal/scanners"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SITELENS_"

// Config is the runtime configuration shared by the CLI and the API server.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server     ServerConfig     `yaml:"server"`
	Scanner    RemoteConfig     `yaml:"scanner"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Jobs       JobsConfig       `yaml:"jobs"`

	// TargetCacheSize bounds the memoized target canonicalization.
	TargetCacheSize int `yaml:"target_cache_size"`
}

type ServerConfig struct {
	ListenAddr  string        `yaml:"listen_addr"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// RemoteConfig addresses one remote service.
type RemoteConfig struct {
	BaseURL string                 `yaml:"base_url"`
	Timeout time.Duration          `yaml:"timeout"`
	Breaker scanners.BreakerConfig `yaml:"breaker"`
}

// EnrichmentConfig configures AI enrichment. An empty BaseURL disables it.
type EnrichmentConfig struct {
	RemoteConfig `yaml:",inline"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

type JobsConfig struct {
	// EventBuffer is the capacity of each job's event channel. Events that do
	// not fit are dropped.
	EventBuffer int `yaml:"event_buffer"`
	// Retention is how long finished jobs stay listed. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:  ":8080",
			ReadTimeout: 15 * time.Second,
		},
		Scanner: RemoteConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 5 * time.Minute,
		},
		Enrichment: EnrichmentConfig{
			RemoteConfig: RemoteConfig{Timeout: 2 * time.Minute},
			CacheSize:    100,
			CacheTTL:     time.Hour,
		},
		Jobs: JobsConfig{
			EventBuffer: 64,
			Retention:   time.Hour,
		},
		TargetCacheSize: 1000,
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// SITELENS_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	str("SCANNER_URL", &c.Scanner.BaseURL)
	str("ENRICHMENT_URL", &c.Enrichment.BaseURL)
	return errors.Join(
		dur("SCANNER_TIMEOUT", &c.Scanner.Timeout),
		dur("ENRICHMENT_TIMEOUT", &c.Enrichment.Timeout),
		dur("ENRICHMENT_CACHE_TTL", &c.Enrichment.CacheTTL),
		num("ENRICHMENT_CACHE_SIZE", &c.Enrichment.CacheSize),
	)
}

// Validate rejects configurations the components cannot be built from.
func (c *Config) Validate() error {
	var errs []error
	if c.Scanner.BaseURL == "" {
		errs = append(errs, errors.New("scanner.base_url is required"))
	}
	if c.Scanner.Timeout < 0 || c.Enrichment.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Enrichment.CacheTTL < 0 {
		errs = append(errs, errors.New("enrichment.cache_ttl must not be negative"))
	}
	if c.Jobs.EventBuffer < 0 {
		errs = append(errs, errors.New("jobs.event_buffer must not be negative"))
	}
	if c.Jobs.Retention < 0 {
		errs = append(errs, errors.New("jobs.retention must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
