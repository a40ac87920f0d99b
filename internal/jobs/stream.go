package jobs

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/logging"
	"ytaudio-server/internal/models"
)

// Streamer converts directly into the response without writing an artifact.
type Streamer struct {
	runner  *downloader.Runner
	info    downloader.InfoFetcher
	limiter *Limiter
	logger  zerolog.Logger
}

func NewStreamer(runner *downloader.Runner, info downloader.InfoFetcher, limiter *Limiter, logger zerolog.Logger) *Streamer {
	return &Streamer{
		runner:  runner,
		info:    info,
		limiter: limiter,
		logger:  logger.With().Str(logging.FieldComponent, "stream").Logger(),
	}
}

// Stream is a running conversion. Reader yields the converted audio; Close
// must be called once the reader is done or abandoned.
type Stream struct {
	Filename    string
	ContentType string
	Reader      io.Reader

	out      *eofReader
	pipeline *downloader.Pipeline
	release  func()
	once     sync.Once
	err      error
}

// Close waits for both stages and returns the pipeline error. A stream
// closed before its output was fully read is cancelled first.
func (s *Stream) Close() error {
	s.once.Do(func() {
		if !s.out.done() {
			s.pipeline.Cancel()
		}
		_, _ = io.Copy(io.Discard, s.out)
		s.err = s.pipeline.Wait()
		s.release()
	})
	return s.err
}

type eofReader struct {
	r   io.Reader
	mu  sync.Mutex
	eof bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.mu.Lock()
		e.eof = true
		e.mu.Unlock()
	}
	return n, err
}

func (e *eofReader) done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eof
}

// Open validates the request, resolves the title for the suggested filename
// and starts the pipeline bound to ctx. A metadata failure aborts before any
// conversion process is started.
func (s *Streamer) Open(ctx context.Context, url, format string) (*Stream, error) {
	if !downloader.IsValidURL(url) {
		return nil, downloader.ErrInvalidURL
	}
	f, ok := models.ParseFormat(format)
	if !ok {
		return nil, downloader.ErrUnsupportedFormat
	}

	info, err := s.info.FetchInfo(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch title: %w", err)
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.runner.Start(ctx, url, f, nil)
	if err != nil {
		release()
		return nil, err
	}

	filename := downloader.SanitizeFilename(info.Title) + f.Extension()
	s.logger.Info().Str(logging.FieldURL, url).Str(logging.FieldFormat, string(f)).
		Str("filename", filename).Msg("stream started")

	out := &eofReader{r: p.Output}
	return &Stream{
		Filename:    filename,
		ContentType: f.ContentType(),
		Reader:      out,
		out:         out,
		pipeline:    p,
		release:     release,
	}, nil
}
