package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "OUTPUT_DIR", "MAX_CONCURRENT_JOBS", "QUEUE_TIMEOUT_SECONDS",
		"DOWNLOAD_CLEANUP_SECONDS", "STORE_BACKEND", "INFO_BACKEND", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset; empty values exercise the fallbacks of the int helpers
	t.Setenv("PORT", ":8080")
	t.Setenv("OUTPUT_DIR", "downloads")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("INFO_BACKEND", "ytdlp")

	cfg := Load()

	if cfg.Port != ":8080" {
		t.Errorf("expected port :8080, got %q", cfg.Port)
	}
	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("expected 3 concurrent jobs, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.QueueTimeout != 10*time.Second {
		t.Errorf("expected queue timeout 10s, got %v", cfg.QueueTimeout)
	}
	if cfg.DownloadCleanupDelay != 60*time.Second {
		t.Errorf("expected cleanup delay 60s, got %v", cfg.DownloadCleanupDelay)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("expected memory store, got %q", cfg.StoreBackend)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("expected no origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_JOBS", "7")
	t.Setenv("DOWNLOAD_CLEANUP_SECONDS", "5")
	t.Setenv("PROGRESS_INTERVAL_MS", "100")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	if cfg.MaxConcurrentJobs != 7 {
		t.Errorf("expected 7, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.DownloadCleanupDelay != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.DownloadCleanupDelay)
	}
	if cfg.ProgressInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", cfg.ProgressInterval)
	}
	if cfg.StoreBackend != StoreRedis {
		t.Errorf("expected redis store, got %q", cfg.StoreBackend)
	}
	expected := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, expected) {
		t.Errorf("expected origins %v, got %v", expected, cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		check func(*Config) bool
	}{
		{"concurrency floor", Config{MaxConcurrentJobs: 0}, func(c *Config) bool { return c.MaxConcurrentJobs == 3 }},
		{"queue timeout", Config{QueueTimeout: -1}, func(c *Config) bool { return c.QueueTimeout == 10*time.Second }},
		{"unknown store", Config{StoreBackend: "etcd"}, func(c *Config) bool { return c.StoreBackend == StoreMemory }},
		{"unknown info backend", Config{InfoBackend: "scraper"}, func(c *Config) bool { return c.InfoBackend == InfoYtDlp }},
		{"empty output dir", Config{}, func(c *Config) bool { return c.OutputDir == "downloads" }},
		{"zero cleanup delay kept", Config{DownloadCleanupDelay: 0}, func(c *Config) bool { return c.DownloadCleanupDelay == 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			validate(&cfg)
			if !tt.check(&cfg) {
				t.Errorf("unexpected config after validate: %+v", cfg)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	valid := Config{
		OutputDir:            "downloads",
		MaxConcurrentJobs:    3,
		QueueTimeout:         time.Second,
		JobTTL:               time.Minute,
		JanitorInterval:      time.Minute,
		ProgressInterval:     time.Millisecond,
		MetadataTimeout:      time.Second,
		StoreBackend:         StoreMemory,
		InfoBackend:          InfoYtDlp,
		DownloadCleanupDelay: time.Minute,
	}
	if w := validate(&valid); len(w) != 0 {
		t.Errorf("expected no warnings for a valid config, got %v", w)
	}

	bad := valid
	bad.MaxConcurrentJobs = 0
	bad.StoreBackend = "etcd"
	w := validate(&bad)
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %v", w)
	}
	if !strings.Contains(w[0], "MAX_CONCURRENT_JOBS=0") || !strings.Contains(w[1], `"etcd"`) {
		t.Errorf("unexpected warnings %v", w)
	}
}

func TestLoadCollectsWarnings(t *testing.T) {
	for _, key := range []string{
		"QUEUE_TIMEOUT_SECONDS", "DOWNLOAD_CLEANUP_SECONDS", "JOB_TTL_MINUTES", "JANITOR_INTERVAL_MINUTES",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MAX_CONCURRENT_JOBS", "-2")
	t.Setenv("INFO_BACKEND", "scraper")

	cfg := Load()
	if len(cfg.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", cfg.Warnings)
	}
	if cfg.MaxConcurrentJobs != 3 || cfg.InfoBackend != InfoYtDlp {
		t.Errorf("expected reset values, got %d %q", cfg.MaxConcurrentJobs, cfg.InfoBackend)
	}
}
