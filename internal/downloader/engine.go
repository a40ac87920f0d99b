package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ytaudio-server/internal/logging"
	"ytaudio-server/internal/models"
)

// State is the lifecycle position of a Pipeline.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const defaultWaitDelay = 5 * time.Second

// Runner launches fetch -> transcode process pairs.
type Runner struct {
	FetchPath     string
	TranscodePath string
	// WaitDelay bounds how long Wait keeps draining a stage's output after it
	// exited or was killed.
	WaitDelay time.Duration

	logger zerolog.Logger
}

func NewRunner(fetchPath, transcodePath string, logger zerolog.Logger) *Runner {
	return &Runner{
		FetchPath:     fetchPath,
		TranscodePath: transcodePath,
		WaitDelay:     defaultWaitDelay,
		logger:        logger.With().Str(logging.FieldComponent, "pipeline").Logger(),
	}
}

// FetchArgs returns the fetch stage arguments: best audio to stdout, one video only.
func FetchArgs(url string) []string {
	return []string{
		"--format", "bestaudio",
		"--no-warnings",
		"--no-playlist",
		"--newline",
		"--progress",
		"--output", "-",
		url,
	}
}

// TranscodeArgs returns the transcode stage arguments for format, reading
// stdin and writing the container to stdout.
func TranscodeArgs(format models.Format) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0", "-vn"}
	switch format {
	case models.FormatWAV:
		args = append(args, "-acodec", "pcm_s16le", "-ar", "44100", "-ac", "2")
	default:
		args = append(args, "-acodec", "libmp3lame", "-q:a", "2", "-id3v2_version", "3")
	}
	return append(args, "-f", string(format), "pipe:1")
}

// Pipeline is one running fetch -> transcode chain. Output must be drained
// before calling Wait.
type Pipeline struct {
	Output io.Reader

	out    *os.File
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Cancel terminates both stages.
func (p *Pipeline) Cancel() {
	p.cancel()
}

// Done is closed once both stages have exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until both stages have exited and returns the terminal error.
func (p *Pipeline) Wait() error {
	<-p.done
	_ = p.out.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start spawns both stages and returns once they are running. Cancelling ctx
// kills both processes.
func (r *Runner) Start(ctx context.Context, url string, format models.Format, onProgress ProgressCallback) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	p := &Pipeline{cancel: cancel, done: make(chan struct{}), state: StateStarting}

	fetch := exec.CommandContext(gctx, r.FetchPath, FetchArgs(url)...)
	transcode := exec.CommandContext(gctx, r.TranscodePath, TranscodeArgs(format)...)
	fetch.WaitDelay = r.WaitDelay
	transcode.WaitDelay = r.WaitDelay

	fetchTail := newTailBuffer(defaultTailSize)
	progress := newProgressWriter(onProgress, fetchTail)
	fetch.Stderr = progress
	transcodeTail := newTailBuffer(defaultTailSize)
	transcode.Stderr = transcodeTail

	fetchOut, err := fetch.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("fetch stdout pipe: %w", err)
	}
	transcodeIn, err := transcode.StdinPipe()
	if err != nil {
		cancel()
		fetchOut.Close()
		return nil, fmt.Errorf("transcode stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		cancel()
		fetchOut.Close()
		transcodeIn.Close()
		return nil, fmt.Errorf("output pipe: %w", err)
	}
	transcode.Stdout = outW
	p.out = outR
	p.Output = outR

	r.logger.Debug().Str(logging.FieldStage, string(StageTranscode)).
		Str("cmd_repro", shellescape.QuoteCommand(transcode.Args)).
		Msg("starting stage")
	if err := transcode.Start(); err != nil {
		cancel()
		fetchOut.Close()
		outW.Close()
		outR.Close()
		return nil, spawnError(StageTranscode, r.TranscodePath, err)
	}
	outW.Close()

	r.logger.Debug().Str(logging.FieldStage, string(StageFetch)).
		Str("cmd_repro", shellescape.QuoteCommand(fetch.Args)).
		Msg("starting stage")
	if err := fetch.Start(); err != nil {
		cancel()
		transcodeIn.Close()
		_ = transcode.Wait()
		outR.Close()
		return nil, spawnError(StageFetch, r.FetchPath, err)
	}
	p.setState(StateRunning)

	// unblock the copy below even if a child of the fetch tool keeps its stdout open
	context.AfterFunc(gctx, func() { fetchOut.Close() })

	res := &stageResults{}
	g.Go(func() error {
		if _, err := io.Copy(transcodeIn, fetchOut); err != nil {
			// transcode stopped reading; keep fetch from blocking on a full pipe
			_, _ = io.Copy(io.Discard, fetchOut)
		}
		// end of fetch output is end of transcode input, however fetch exits
		transcodeIn.Close()
		waitErr := fetch.Wait()
		progress.Flush()
		if waitErr == nil {
			return nil
		}
		se := stageError(StageFetch, waitErr, fetchTail)
		if !res.fetchFailed(se) {
			r.logger.Warn().Str(logging.FieldURL, url).Int("exit_code", se.ExitCode).
				Msg("fetch stage failed after transcode completed; ignoring")
			return nil
		}
		return se
	})
	g.Go(func() error {
		if err := transcode.Wait(); err != nil {
			return stageError(StageTranscode, err, transcodeTail)
		}
		res.transcodeSucceeded()
		return nil
	})

	go r.supervise(ctx, p, g, res, url)

	return p, nil
}

func (r *Runner) supervise(ctx context.Context, p *Pipeline, g *errgroup.Group, res *stageResults, url string) {
	err := res.resolve(g.Wait())
	if ctx.Err() != nil {
		err = fmt.Errorf("pipeline canceled: %w", ctx.Err())
	}
	p.cancel()

	p.mu.Lock()
	p.err = err
	if err != nil {
		p.state = StateFailed
	} else {
		p.state = StateSucceeded
	}
	p.mu.Unlock()

	var se *StageError
	switch {
	case err == nil:
		r.logger.Debug().Str(logging.FieldURL, url).Msg("pipeline finished")
	case errors.As(err, &se):
		r.logger.Error().Str(logging.FieldURL, url).Str(logging.FieldStage, string(se.Stage)).
			Int("exit_code", se.ExitCode).Str("stderr_tail", se.Stderr).
			Msg("pipeline failed")
	default:
		r.logger.Info().Str(logging.FieldURL, url).Err(err).Msg("pipeline stopped")
	}
	close(p.done)
}

// Run streams the converted audio for url into dst and returns once both
// stages have exited.
func (r *Runner) Run(ctx context.Context, url string, format models.Format, dst io.Writer, onProgress ProgressCallback) error {
	p, err := r.Start(ctx, url, format, onProgress)
	if err != nil {
		return err
	}
	if _, copyErr := io.Copy(dst, p.Output); copyErr != nil {
		p.Cancel()
		if waitErr := p.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
			return waitErr
		}
		return fmt.Errorf("write output: %w", copyErr)
	}
	return p.Wait()
}

// stageResults orders stage exits. The transcode exit decides the outcome: a
// fetch failure after transcode exited 0 is ignored, and a fetch that failed
// on its own is reported ahead of the transcode failure it caused.
type stageResults struct {
	mu          sync.Mutex
	transcodeOK bool
	fetchErr    *StageError
}

// fetchFailed records a fetch failure and reports whether it still counts.
func (s *stageResults) fetchFailed(err *StageError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcodeOK {
		return false
	}
	// -1 means the process was killed after the other stage failed or ctx ended
	if err.ExitCode > 0 {
		s.fetchErr = err
	}
	return true
}

func (s *stageResults) transcodeSucceeded() {
	s.mu.Lock()
	s.transcodeOK = true
	s.mu.Unlock()
}

func (s *stageResults) resolve(groupErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return s.fetchErr
	}
	if s.transcodeOK {
		return nil
	}
	return groupErr
}

func spawnError(stage Stage, path string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &ToolMissingError{Tool: filepath.Base(path), Err: err}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf("start: %w", err)}
}

func stageError(stage Stage, err error, tail *tailBuffer) *StageError {
	se := &StageError{Stage: stage, Stderr: tail.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		se.ExitCode = exitErr.ExitCode()
	}
	return se
}
