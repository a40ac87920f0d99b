package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"ytaudio-server/internal/config"
	"ytaudio-server/internal/logging"
	"ytaudio-server/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logging.SetGlobal(logger)
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Filesystem
	if err := server.PrepareFilesystem(cfg); err != nil {
		log.Fatal().Err(err).Msg("prepare filesystem")
	}

	// 2. Services
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init services")
	}
	defer a.close()

	a.manager.StartJanitor(ctx)

	// 3. HTTP
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Port).Str("output_dir", cfg.OutputDir).
			Int("max_jobs", cfg.MaxConcurrentJobs).Msg("ytaudio server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := a.manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("job shutdown")
	}
}
