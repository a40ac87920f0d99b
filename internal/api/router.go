package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter setup routes and apply global middleware
func NewRouter(h *Handler, allowedOrigins []string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(logger)...)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(allowedOrigins))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/info", h.GetVideoInfo)
		r.Post("/convert-stream", h.ConvertStream)
		r.Post("/convert", h.StartConversion)
		r.Get("/status/{id}", h.Status)
		r.Get("/download/{id}", h.Download)
		r.Get("/events/{id}", h.SSE)
	})

	return r
}
