package server

import (
	"os"
	"path/filepath"
	"testing"

	"ytaudio-server/internal/config"
)

func TestPrepareFilesystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	cfg := &config.Config{OutputDir: dir}

	if err := PrepareFilesystem(cfg); err != nil {
		t.Fatalf("PrepareFilesystem: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory %s, got %v", dir, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected the write check to leave nothing behind, found %d entries", len(entries))
	}
}

func TestPrepareFilesystemFailsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := PrepareFilesystem(&config.Config{OutputDir: file}); err == nil {
		t.Error("expected an error when the output path is a file")
	}
}
