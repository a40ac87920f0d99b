package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	InfoYtDlp  = "ytdlp"
	InfoClient = "client"
)

// Config holds all server settings in correct types
type Config struct {
	Port       string
	OutputDir  string
	YtDlpPath  string
	FFmpegPath string

	MaxConcurrentJobs    int
	QueueTimeout         time.Duration
	DownloadCleanupDelay time.Duration
	JobTTL               time.Duration
	JanitorInterval      time.Duration
	ProgressInterval     time.Duration
	MetadataTimeout      time.Duration

	LogLevel  string
	LogFormat string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InfoBackend    string
	AllowedOrigins []string

	// Warnings lists the settings Load had to reset. Load runs before the
	// logger exists, so main logs them once logging is configured.
	Warnings []string
}

// Load: The only way to get config in the app
func Load() *Config {
	cfg := &Config{
		Port:       getEnv("PORT", ":8080"),
		OutputDir:  getEnv("OUTPUT_DIR", "downloads"),
		YtDlpPath:  getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		MaxConcurrentJobs:    getEnvAsInt("MAX_CONCURRENT_JOBS", 3),
		QueueTimeout:         getEnvAsDuration("QUEUE_TIMEOUT_SECONDS", 10, time.Second),
		DownloadCleanupDelay: getEnvAsDuration("DOWNLOAD_CLEANUP_SECONDS", 60, time.Second),
		JobTTL:               getEnvAsDuration("JOB_TTL_MINUTES", 15, time.Minute),
		JanitorInterval:      getEnvAsDuration("JANITOR_INTERVAL_MINUTES", 5, time.Minute),
		ProgressInterval:     getEnvAsDuration("PROGRESS_INTERVAL_MS", 250, time.Millisecond),
		MetadataTimeout:      getEnvAsDuration("METADATA_TIMEOUT_SECONDS", 30, time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		InfoBackend:    strings.ToLower(getEnv("INFO_BACKEND", InfoYtDlp)),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
	}

	cfg.Warnings = validate(cfg)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(str); err == nil {
		return val
	}
	return fallback
}

func getEnvAsDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * unit
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate resets values the server cannot run with and describes each reset
func validate(cfg *Config) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if cfg.MaxConcurrentJobs < 1 {
		warn("MAX_CONCURRENT_JOBS=%d must be at least 1, resetting to 3", cfg.MaxConcurrentJobs)
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.QueueTimeout <= 0 {
		warn("QUEUE_TIMEOUT_SECONDS must be positive, resetting to 10")
		cfg.QueueTimeout = 10 * time.Second
	}
	if cfg.DownloadCleanupDelay < 0 {
		warn("DOWNLOAD_CLEANUP_SECONDS must not be negative, resetting to 60")
		cfg.DownloadCleanupDelay = 60 * time.Second
	}
	if cfg.JobTTL <= 0 {
		warn("JOB_TTL_MINUTES must be positive, resetting to 15")
		cfg.JobTTL = 15 * time.Minute
	}
	if cfg.JanitorInterval <= 0 {
		warn("JANITOR_INTERVAL_MINUTES must be positive, resetting to 5")
		cfg.JanitorInterval = 5 * time.Minute
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 250 * time.Millisecond
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 30 * time.Second
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "downloads"
	}
	switch cfg.StoreBackend {
	case StoreMemory, StoreRedis:
	default:
		warn("unknown STORE_BACKEND %q, using memory", cfg.StoreBackend)
		cfg.StoreBackend = StoreMemory
	}
	switch cfg.InfoBackend {
	case InfoYtDlp, InfoClient:
	default:
		warn("unknown INFO_BACKEND %q, using ytdlp", cfg.InfoBackend)
		cfg.InfoBackend = InfoYtDlp
	}
	return warnings
}
