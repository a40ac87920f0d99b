package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates err into a status code and a client-safe message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	respondJSON(w, status, errorResponse{Error: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound, "Conversion not found"
	case errors.Is(err, jobs.ErrNotReady):
		return http.StatusNotFound, "File not found or conversion not complete"
	case errors.Is(err, jobs.ErrBusy):
		return http.StatusServiceUnavailable, "Server busy"
	case errors.Is(err, downloader.ErrInvalidInput), downloader.IsUpstream(err):
		return http.StatusBadRequest, downloader.ClientMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, downloader.ClientMessage(err)
	}
}
