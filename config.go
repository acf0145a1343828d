package photocluster

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the environment-driven settings of the data layer. Cache
// and preload fields are consumed by the respective packages; the rest lower
// to client options via Options.
type Config struct {
	BaseURL    string        `env:"PHOTOCLUSTER_BASE_URL"`
	Timeout    time.Duration `env:"PHOTOCLUSTER_TIMEOUT"     envDefault:"30s"`
	Retries    int           `env:"PHOTOCLUSTER_RETRIES"     envDefault:"3"`
	RetryDelay time.Duration `env:"PHOTOCLUSTER_RETRY_DELAY" envDefault:"250ms"`
	MaxBackoff time.Duration `env:"PHOTOCLUSTER_MAX_BACKOFF" envDefault:"10s"`
	Debug      bool          `env:"PHOTOCLUSTER_DEBUG"       envDefault:"false"`

	CacheTTL     time.Duration `env:"PHOTOCLUSTER_CACHE_TTL"      envDefault:"1h"`
	CacheMaxSize int           `env:"PHOTOCLUSTER_CACHE_MAX_SIZE" envDefault:"512"`
	CachePath    string        `env:"PHOTOCLUSTER_CACHE_PATH"`

	PreloadConcurrency int `env:"PHOTOCLUSTER_PRELOAD_CONCURRENCY" envDefault:"3"`
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Options lowers the config to client options.
func (cfg Config) Options() []Option {
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.Retries),
		WithInitialBackoff(cfg.RetryDelay),
		WithMaxBackoff(cfg.MaxBackoff),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Debug {
		opts = append(opts, WithSimpleLogger())
	}
	return opts
}
