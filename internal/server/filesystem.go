package server

import (
	"fmt"
	"os"

	"ytaudio-server/internal/config"
)

// PrepareFilesystem creates the artifact directory and checks it is writable
func PrepareFilesystem(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	check, err := os.CreateTemp(cfg.OutputDir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output dir %s is not writable: %w", cfg.OutputDir, err)
	}
	name := check.Name()
	check.Close()
	return os.Remove(name)
}
