package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"ytaudio-server/internal/logging"
	"ytaudio-server/internal/models"
)

const DefaultInfoTimeout = 30 * time.Second

// InfoFetcher retrieves preview metadata for a video without downloading it.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error)
}

// ToolInfoFetcher runs the fetch tool in metadata-dump mode.
type ToolInfoFetcher struct {
	Path    string
	Timeout time.Duration

	logger zerolog.Logger
}

func NewToolInfoFetcher(path string, timeout time.Duration, logger zerolog.Logger) *ToolInfoFetcher {
	if timeout <= 0 {
		timeout = DefaultInfoTimeout
	}
	return &ToolInfoFetcher{
		Path:    path,
		Timeout: timeout,
		logger:  logger.With().Str(logging.FieldComponent, "info").Logger(),
	}
}

// dumpRecord is the subset of the --dump-json record we project.
type dumpRecord struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	ViewCount int64   `json:"view_count"`
}

func (f *ToolInfoFetcher) FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	stderr := newTailBuffer(defaultTailSize)
	cmd := exec.CommandContext(ctx, f.Path, "--dump-json", "--no-playlist", "--no-warnings", url)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = defaultWaitDelay

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && ctx.Err() == nil {
			return nil, spawnError(StageMetadata, f.Path, err)
		}
		se := stageError(StageMetadata, err, stderr)
		f.logger.Warn().Str(logging.FieldURL, url).Int("exit_code", se.ExitCode).
			Str("stderr_tail", se.Stderr).Msg("metadata dump failed")
		return nil, se
	}

	return parseDump(stdout.Bytes())
}

func parseDump(out []byte) (*models.VideoInfo, error) {
	// one record per line; --no-playlist guarantees the first is the video
	line := bytes.TrimSpace(out)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	var rec dumpRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInfo, err)
	}
	if strings.TrimSpace(rec.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrMalformedInfo)
	}
	channel := rec.Channel
	if channel == "" {
		channel = rec.Uploader
	}
	return &models.VideoInfo{
		Title:     rec.Title,
		Thumbnail: rec.Thumbnail,
		Duration:  rec.Duration,
		Channel:   channel,
		Views:     rec.ViewCount,
	}, nil
}

// ClientInfoFetcher reads metadata through the YouTube player API directly,
// without the external tool.
type ClientInfoFetcher struct {
	client youtube.Client
}

// NewClientInfoFetcher builds a fetcher on httpClient; nil uses http.DefaultClient.
func NewClientInfoFetcher(httpClient *http.Client) *ClientInfoFetcher {
	return &ClientInfoFetcher{client: youtube.Client{HTTPClient: httpClient}}
}

func (f *ClientInfoFetcher) FetchInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	video, err := f.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, &StageError{Stage: StageMetadata, Err: err}
	}
	return videoInfo(video), nil
}

func videoInfo(video *youtube.Video) *models.VideoInfo {
	info := &models.VideoInfo{
		Title:    video.Title,
		Duration: video.Duration.Seconds(),
		Channel:  video.Author,
		Views:    int64(video.Views),
	}
	// thumbnails are ordered smallest first
	if n := len(video.Thumbnails); n > 0 {
		info.Thumbnail = video.Thumbnails[n-1].URL
	}
	return info
}
