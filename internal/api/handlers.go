package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
	"ytaudio-server/internal/models"
)

const (
	maxBodyBytes  = 1 << 20
	eventInterval = 500 * time.Millisecond
	streamChunk   = 32 << 10
)

var errBadBody = fmt.Errorf("%w: malformed request body", downloader.ErrInvalidInput)

type Handler struct {
	Manager  *jobs.Manager
	Streamer *jobs.Streamer
	Info     downloader.InfoFetcher
}

func NewHandler(m *jobs.Manager, s *jobs.Streamer, info downloader.InfoFetcher) *Handler {
	return &Handler{Manager: m, Streamer: s, Info: info}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func (h *Handler) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req models.InfoRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !downloader.IsValidURL(req.URL) {
		writeError(w, r, downloader.ErrInvalidURL)
		return
	}

	info, err := h.Info.FetchInfo(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// ConvertStream writes the converted audio as it is produced. The pipeline
// is bound to the request, so a client that goes away stops both processes.
func (h *Handler) ConvertStream(w http.ResponseWriter, r *http.Request) {
	var req models.ConvertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := h.Streamer.Open(r.Context(), req.URL, req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer st.Close()

	// hold the headers back until the pipeline produced its first bytes, so
	// an early failure can still be reported as JSON
	buf := make([]byte, streamChunk)
	n, readErr := readSome(st.Reader, buf)
	if n == 0 {
		if err := st.Close(); err != nil {
			writeError(w, r, err)
			return
		}
		if readErr != nil && readErr != io.EOF {
			writeError(w, r, readErr)
			return
		}
	}

	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", st.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, st.Filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for n > 0 {
		if _, err := w.Write(buf[:n]); err != nil {
			hlog.FromRequest(r).Info().Err(err).Msg("client went away during stream")
			return
		}
		_ = rc.Flush()
		if readErr != nil {
			break
		}
		n, readErr = readSome(st.Reader, buf)
	}

	if err := st.Close(); err != nil {
		if r.Context().Err() != nil {
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("stream failed after headers were sent")
		// the status line is gone; breaking the connection is the only signal left
		panic(http.ErrAbortHandler)
	}
}

// readSome reads until it gets at least one byte or an error.
func readSome(r io.Reader, buf []byte) (int, error) {
	for {
		n, err := r.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (h *Handler) StartConversion(w http.ResponseWriter, r *http.Request) {
	var req models.ConvertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.Manager.Start(r.Context(), req.URL, req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"conversionId": job.ID,
		"statusUrl":    fmt.Sprintf("/api/status/%s", job.ID),
		"downloadUrl":  fmt.Sprintf("/api/download/%s", job.ID),
		"eventsUrl":    fmt.Sprintf("/api/events/%s", job.ID),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.Manager.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	setNoCacheHeaders(w)
	respondJSON(w, http.StatusOK, job)
}

// SSE pushes job snapshots until the job reaches a terminal state.
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := h.Manager.Status(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	ticker := time.NewTicker(eventInterval)
	defer ticker.Stop()

	for {
		job, err := h.Manager.Status(r.Context(), jobID)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", "Conversion not found")
			_ = rc.Flush()
			return
		}
		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "data: %s\n\n", data)
		_ = rc.Flush()

		if job.Status.IsTerminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	art, err := h.Manager.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer art.File.Close()

	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, art.Name, art.ModTime, art.File)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
