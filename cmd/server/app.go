package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ytaudio-server/internal/api"
	"ytaudio-server/internal/config"
	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
)

// app is the wired set of services behind the HTTP server.
type app struct {
	manager *jobs.Manager
	router  http.Handler
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if rs, ok := store.(*jobs.RedisStore); ok {
		a.closers = append(a.closers, rs.Close)
	}

	runner := downloader.NewRunner(cfg.YtDlpPath, cfg.FFmpegPath, logger)
	limiter := jobs.NewLimiter(cfg.MaxConcurrentJobs, cfg.QueueTimeout)
	info := newInfoFetcher(cfg, logger)

	a.manager = jobs.NewManager(cfg, store, runner, limiter, logger)
	streamer := jobs.NewStreamer(runner, info, limiter, logger)

	handler := api.NewHandler(a.manager, streamer, info)
	a.router = api.NewRouter(handler, cfg.AllowedOrigins, logger)
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (jobs.Store, error) {
	if cfg.StoreBackend != config.StoreRedis {
		logger.Info().Msg("job registry: memory")
		return jobs.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	// entries outlive the janitor TTL a little so a sweep always sees them first
	store := jobs.NewRedisStore(client, cfg.JobTTL+cfg.JanitorInterval)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("job registry: redis")
	return store, nil
}

func newInfoFetcher(cfg *config.Config, logger zerolog.Logger) downloader.InfoFetcher {
	if cfg.InfoBackend == config.InfoClient {
		logger.Info().Msg("metadata backend: youtube client")
		return downloader.NewClientInfoFetcher(&http.Client{Timeout: cfg.MetadataTimeout})
	}
	logger.Info().Str("path", cfg.YtDlpPath).Msg("metadata backend: yt-dlp")
	return downloader.NewToolInfoFetcher(cfg.YtDlpPath, cfg.MetadataTimeout, logger)
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
}
