package jobs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// StartJanitor sweeps the registry and the output directory every
// JanitorInterval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.JanitorInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.Sweep(ctx, now)
			}
		}
	}()
}

// Sweep removes terminal jobs last updated more than JobTTL before now,
// together with their artifacts, and artifact files that belong to no job.
// It returns the number of jobs and orphan files removed.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (jobsRemoved, filesRemoved int) {
	log := m.logger.With().Str("task", "janitor").Logger()

	list, err := m.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list jobs")
		return 0, 0
	}
	known := make(map[string]struct{}, len(list))
	for _, job := range list {
		if !job.Status.IsTerminal() || now.Sub(job.UpdatedAt) <= m.cfg.JobTTL {
			known[job.ID] = struct{}{}
			continue
		}
		path := ""
		if job.Filename != "" {
			path = filepath.Join(m.cfg.OutputDir, job.Filename)
		}
		m.removeJob(job.ID, path)
		jobsRemoved++
	}

	entries, err := os.ReadDir(m.cfg.OutputDir)
	if err != nil {
		log.Error().Err(err).Msg("read output dir")
		return jobsRemoved, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := artifactID(e.Name())
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) <= m.cfg.JobTTL {
			continue
		}
		if err := os.Remove(filepath.Join(m.cfg.OutputDir, e.Name())); err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("remove orphan artifact")
			continue
		}
		filesRemoved++
	}

	if jobsRemoved > 0 || filesRemoved > 0 {
		log.Info().Int("jobs", jobsRemoved).Int("files", filesRemoved).Msg("janitor sweep finished")
	}
	return jobsRemoved, filesRemoved
}

// artifactID returns the job id an artifact name starts with, or "" when the
// name does not start with one.
func artifactID(name string) string {
	const idLen = 36
	if len(name) < idLen {
		return ""
	}
	if _, err := uuid.Parse(name[:idLen]); err != nil {
		return ""
	}
	return name[:idLen]
}
