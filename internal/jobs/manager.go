package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ytaudio-server/internal/config"
	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/logging"
	"ytaudio-server/internal/models"
)

const (
	msgServerBusy     = "Server busy"
	msgOutputNotFound = "Output file not found"
)

var (
	// ErrNotReady is returned by Open for jobs that have not completed.
	ErrNotReady = errors.New("conversion not complete")
	// ErrStopped is returned by Start once Shutdown has begun.
	ErrStopped = errors.New("manager stopped")
)

// Artifact is an opened conversion result. The caller closes File.
type Artifact struct {
	File        *os.File
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Manager runs async conversions in the background and tracks them in a Store.
type Manager struct {
	cfg     *config.Config
	store   Store
	runner  *downloader.Runner
	limiter *Limiter
	logger  zerolog.Logger

	// base is the parent of every task context; it outlives the request
	// that started the job.
	base     context.Context
	stopAll  context.CancelFunc
	wg       sync.WaitGroup
	tasks    sync.Map // id -> context.CancelFunc

	// runMu orders wg.Add in Start against wg.Wait in Shutdown.
	runMu   sync.Mutex
	stopped bool

	mu       sync.Mutex
	cleanups map[string]*time.Timer
}

func NewManager(cfg *config.Config, store Store, runner *downloader.Runner, limiter *Limiter, logger zerolog.Logger) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		limiter:  limiter,
		logger:   logger.With().Str(logging.FieldComponent, "jobs").Logger(),
		base:     base,
		stopAll:  cancel,
		cleanups: make(map[string]*time.Timer),
	}
}

// Start validates the request, records a processing job and returns it
// without waiting for the conversion.
func (m *Manager) Start(ctx context.Context, url, format string) (models.Job, error) {
	if !downloader.IsValidURL(url) {
		return models.Job{}, downloader.ErrInvalidURL
	}
	f, ok := models.ParseFormat(format)
	if !ok {
		return models.Job{}, downloader.ErrUnsupportedFormat
	}
	m.runMu.Lock()
	if m.stopped {
		m.runMu.Unlock()
		return models.Job{}, ErrStopped
	}
	m.wg.Add(1)
	m.runMu.Unlock()

	now := time.Now()
	job := models.Job{
		ID:        uuid.New().String(),
		Status:    models.StatusProcessing,
		Format:    f,
		VideoURL:  url,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Set(ctx, job); err != nil {
		m.wg.Done()
		return models.Job{}, fmt.Errorf("store job: %w", err)
	}

	taskCtx, cancel := context.WithCancel(m.base)
	m.tasks.Store(job.ID, cancel)
	go func() {
		defer m.wg.Done()
		defer m.tasks.Delete(job.ID)
		defer cancel()
		m.runWorker(taskCtx, job)
	}()

	m.logger.Info().Str(logging.FieldJobID, job.ID).Str(logging.FieldURL, url).
		Str(logging.FieldFormat, string(f)).Msg("conversion queued")
	return job, nil
}

// Status returns the current snapshot of a job.
func (m *Manager) Status(ctx context.Context, id string) (models.Job, error) {
	return m.store.Get(ctx, id)
}

// Cancel stops a running conversion. It reports whether a task was running.
func (m *Manager) Cancel(id string) bool {
	val, ok := m.tasks.Load(id)
	if !ok {
		return false
	}
	val.(context.CancelFunc)()
	return true
}

// Shutdown cancels every running conversion and waits for the workers to
// record their final state, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.runMu.Lock()
	m.stopped = true
	m.runMu.Unlock()
	m.stopAll()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) runWorker(ctx context.Context, job models.Job) {
	log := m.logger.With().Str(logging.FieldJobID, job.ID).Logger()

	release, err := m.limiter.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			log.Warn().Msg("no free conversion slot")
			m.fail(job.ID, msgServerBusy)
			return
		}
		m.fail(job.ID, downloader.ClientMessage(err))
		return
	}
	defer release()

	path := filepath.Join(m.cfg.OutputDir, job.ID+job.Format.Extension())
	out, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("create output file")
		m.fail(job.ID, downloader.ClientMessage(err))
		return
	}

	err = m.runner.Run(ctx, job.VideoURL, job.Format, out, m.progressRecorder(job.ID))
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn().Err(rmErr).Msg("remove partial output")
		}
		log.Error().Err(err).Msg("conversion failed")
		m.fail(job.ID, downloader.ClientMessage(err))
		return
	}

	name, err := m.findArtifact(job.ID)
	if err != nil {
		log.Error().Err(err).Msg("locate output")
		m.fail(job.ID, msgOutputNotFound)
		return
	}

	m.update(job.ID, func(j *models.Job) {
		j.Status = models.StatusCompleted
		j.Progress = 100
		j.Filename = name
		j.Error = ""
	})
	log.Info().Str("filename", name).Msg("conversion completed")
}

// progressRecorder persists progress at most once per ProgressInterval.
// Completion always writes 100, so dropped intermediate values do not matter.
func (m *Manager) progressRecorder(id string) downloader.ProgressCallback {
	limiter := rate.NewLimiter(rate.Every(m.cfg.ProgressInterval), 1)
	return func(pct float64) {
		if !limiter.Allow() {
			return
		}
		m.update(id, func(j *models.Job) {
			if j.Status == models.StatusProcessing {
				j.Progress = pct
			}
		})
	}
}

// findArtifact returns the name of the first file in the output directory
// prefixed with id. Ids are fixed-length uuids, so no id prefixes another.
func (m *Manager) findArtifact(id string) (string, error) {
	entries, err := os.ReadDir(m.cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), id) {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("no artifact for %s: %w", id, os.ErrNotExist)
}

func (m *Manager) fail(id, message string) {
	m.update(id, func(j *models.Job) {
		j.Status = models.StatusError
		j.Progress = 0
		j.Error = message
	})
}

// update applies fn to the stored job. Terminal jobs are never modified.
func (m *Manager) update(id string, fn func(*models.Job)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		m.logger.Warn().Err(err).Str(logging.FieldJobID, id).Msg("load job for update")
		return
	}
	if job.Status.IsTerminal() {
		return
	}
	fn(&job)
	job.UpdatedAt = time.Now()
	if err := m.store.Set(ctx, job); err != nil {
		m.logger.Error().Err(err).Str(logging.FieldJobID, id).Msg("save job")
	}
}

// Open returns the completed artifact of a job and schedules its removal,
// together with the registry entry, after DownloadCleanupDelay. The removal
// is scheduled by the first Open only; until it fires the download may be
// repeated.
func (m *Manager) Open(ctx context.Context, id string) (*Artifact, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusCompleted || job.Filename == "" {
		return nil, ErrNotReady
	}

	path := filepath.Join(m.cfg.OutputDir, job.Filename)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", job.Filename, ErrNotFound)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	m.scheduleCleanup(id, path)

	return &Artifact{
		File:        f,
		Name:        job.Filename,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: models.ContentTypeForExt(filepath.Ext(job.Filename)),
	}, nil
}

func (m *Manager) scheduleCleanup(id, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cleanups[id]; ok {
		return
	}
	m.cleanups[id] = time.AfterFunc(m.cfg.DownloadCleanupDelay, func() {
		m.removeJob(id, path)
		m.mu.Lock()
		delete(m.cleanups, id)
		m.mu.Unlock()
	})
	m.logger.Debug().Str(logging.FieldJobID, id).Dur("delay", m.cfg.DownloadCleanupDelay).Msg("cleanup scheduled")
}

// removeJob deletes the artifact and the registry entry. Errors are logged only.
func (m *Manager) removeJob(id, path string) {
	log := m.logger.With().Str(logging.FieldJobID, id).Logger()
	if path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("cleanup: remove file")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Delete(ctx, id); err != nil {
		log.Error().Err(err).Msg("cleanup: delete job")
		return
	}
	log.Info().Msg("job cleaned up")
}
