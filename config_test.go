package photocluster

import (
	"testing"
	"time"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() returned error: %v", err)
	}

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.Retries != 3 {
		t.Errorf("Expected default retries 3, got %d", cfg.Retries)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("Expected default retry delay 250ms, got %v", cfg.RetryDelay)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("Expected default max backoff 10s, got %v", cfg.MaxBackoff)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected default cache TTL 1h, got %v", cfg.CacheTTL)
	}
	if cfg.CacheMaxSize != 512 {
		t.Errorf("Expected default cache size 512, got %d", cfg.CacheMaxSize)
	}
	if cfg.PreloadConcurrency != 3 {
		t.Errorf("Expected default preload concurrency 3, got %d", cfg.PreloadConcurrency)
	}
	if cfg.Debug {
		t.Error("Expected debug disabled by default")
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PHOTOCLUSTER_BASE_URL", "http://localhost:8000")
	t.Setenv("PHOTOCLUSTER_TIMEOUT", "5s")
	t.Setenv("PHOTOCLUSTER_RETRIES", "7")
	t.Setenv("PHOTOCLUSTER_RETRY_DELAY", "100ms")
	t.Setenv("PHOTOCLUSTER_MAX_BACKOFF", "1m")
	t.Setenv("PHOTOCLUSTER_DEBUG", "true")
	t.Setenv("PHOTOCLUSTER_CACHE_TTL", "15m")
	t.Setenv("PHOTOCLUSTER_CACHE_MAX_SIZE", "64")
	t.Setenv("PHOTOCLUSTER_CACHE_PATH", "/tmp/photocluster.db")
	t.Setenv("PHOTOCLUSTER_PRELOAD_CONCURRENCY", "8")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() returned error: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("Expected base URL from env, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.Retries != 7 {
		t.Errorf("Expected retries 7, got %d", cfg.Retries)
	}
	if cfg.RetryDelay != 100*time.Millisecond {
		t.Errorf("Expected retry delay 100ms, got %v", cfg.RetryDelay)
	}
	if cfg.MaxBackoff != time.Minute {
		t.Errorf("Expected max backoff 1m, got %v", cfg.MaxBackoff)
	}
	if !cfg.Debug {
		t.Error("Expected debug enabled")
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("Expected cache TTL 15m, got %v", cfg.CacheTTL)
	}
	if cfg.CacheMaxSize != 64 {
		t.Errorf("Expected cache size 64, got %d", cfg.CacheMaxSize)
	}
	if cfg.CachePath != "/tmp/photocluster.db" {
		t.Errorf("Expected cache path from env, got %q", cfg.CachePath)
	}
	if cfg.PreloadConcurrency != 8 {
		t.Errorf("Expected preload concurrency 8, got %d", cfg.PreloadConcurrency)
	}
}

func TestConfigFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("PHOTOCLUSTER_TIMEOUT", "not-a-duration")

	if _, err := ConfigFromEnv(); err == nil {
		t.Error("Expected parse error for invalid duration")
	}
}

func TestConfigOptionsBuildValidClient(t *testing.T) {
	t.Setenv("PHOTOCLUSTER_BASE_URL", "http://localhost:8000")
	t.Setenv("PHOTOCLUSTER_RETRIES", "2")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() returned error: %v", err)
	}

	client := New(cfg.Options()...)
	if !client.IsValid() {
		t.Fatalf("Expected valid client from env config, got %v", client.ValidationError())
	}
	if client.BaseURL() != "http://localhost:8000" {
		t.Errorf("Expected base URL applied, got %q", client.BaseURL())
	}
	if client.maxRetries != 2 {
		t.Errorf("Expected retries applied, got %d", client.maxRetries)
	}
	if client.timeout != 30*time.Second {
		t.Errorf("Expected default timeout carried through, got %v", client.timeout)
	}
}
