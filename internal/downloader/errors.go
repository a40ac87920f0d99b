package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage names a step of the conversion that runs an external tool.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTranscode Stage = "transcode"
	StageMetadata  Stage = "metadata"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidURL        = fmt.Errorf("%w: invalid YouTube URL", ErrInvalidInput)
	ErrUnsupportedFormat = fmt.Errorf("%w: invalid format, use mp3 or wav", ErrInvalidInput)
	ErrMalformedInfo     = errors.New("malformed video info")
)

// ToolMissingError is returned when an external binary cannot be started.
type ToolMissingError struct {
	Tool string
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Tool, e.Err)
}

func (e *ToolMissingError) Unwrap() error { return e.Err }

// StageError reports a stage that exited unsuccessfully. Stderr is the
// captured diagnostic tail and must never be sent to clients.
type StageError struct {
	Stage    Stage
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s stage failed", e.Stage)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// IsUpstream reports whether err means the video itself could not be fetched.
func IsUpstream(err error) bool {
	var se *StageError
	return errors.As(err, &se) && (se.Stage == StageFetch || se.Stage == StageMetadata)
}

// ClientMessage maps err to a message that is safe to show to a client.
// Raw tool output and paths never leak through here.
func ClientMessage(err error) string {
	var (
		tm *ToolMissingError
		se *StageError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "Invalid YouTube URL"
	case errors.Is(err, ErrUnsupportedFormat):
		return "Invalid format. Use mp3 or wav."
	case errors.Is(err, ErrInvalidInput):
		return "Invalid request"
	case errors.As(err, &tm):
		return fmt.Sprintf("%s not found. Please install %s first.", tm.Tool, tm.Tool)
	case errors.Is(err, ErrMalformedInfo):
		return "Failed to parse video info"
	case errors.As(err, &se):
		switch se.Stage {
		case StageTranscode:
			return "Conversion failed"
		default:
			return "Failed to fetch video. Please check the URL and try again."
		}
	case errors.Is(err, context.Canceled):
		return "Conversion canceled"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "permission denied"):
		return "Storage permission denied. Please contact system administrator."
	case strings.Contains(msg, "no space left"):
		return "Disk space exhausted. Cannot complete conversion."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
