// internal/store/artifacts.go

// Package store persists per-run checkpoint artifacts on the local
// filesystem. Layout, relative to the configured artifacts root:
//
//	<root>/<run-id>/result.json
//	<root>/<run-id>/failure.json
//	<root>/<run-id>/<checkpoint>/screenshot.png
//	<root>/<run-id>/<checkpoint>/metadata.json
//
// Capture deduplication is tracked in memory per run and backed by the
// presence of metadata.json, so a checkpoint is never captured twice even
// across a store rebuild.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

var artifactJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const dirPerm = 0o755

// FileStore implements schemas.ArtifactStore over a per-run directory.
type FileStore struct {
	logger *zap.Logger
	runDir string

	mu       sync.Mutex
	captured map[string]bool
}

// NewFileStore creates the run directory under root and returns a store
// scoped to it.
func NewFileStore(logger *zap.Logger, root, runID string) (*FileStore, error) {
	runDir := filepath.Join(root, sanitize(runID))
	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create run directory %q: %w", runDir, err)
	}
	return &FileStore{
		logger:   logger.Named("store"),
		runDir:   runDir,
		captured: make(map[string]bool),
	}, nil
}

// RunDir returns the absolute directory artifacts are written under.
func (s *FileStore) RunDir() string {
	return s.runDir
}

// SaveScreenshot writes the PNG under the checkpoint directory and returns
// the path written.
func (s *FileStore) SaveScreenshot(checkpoint string, data []byte) (string, error) {
	dir := filepath.Join(s.runDir, sanitize(checkpoint))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	path := filepath.Join(dir, "screenshot.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Debug("Screenshot written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// SaveCheckpointRecord writes metadata.json and marks the checkpoint
// captured.
func (s *FileStore) SaveCheckpointRecord(rec *schemas.CheckpointRecord) error {
	dir := filepath.Join(s.runDir, sanitize(rec.Checkpoint))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if err := s.writeJSON(filepath.Join(dir, "metadata.json"), rec); err != nil {
		return err
	}
	s.mu.Lock()
	s.captured[rec.Checkpoint] = true
	s.mu.Unlock()
	return nil
}

// Captured reports whether metadata was already produced for the checkpoint,
// in this store instance or on disk.
func (s *FileStore) Captured(checkpoint string) bool {
	s.mu.Lock()
	done := s.captured[checkpoint]
	s.mu.Unlock()
	if done {
		return true
	}
	_, err := os.Stat(filepath.Join(s.runDir, sanitize(checkpoint), "metadata.json"))
	return err == nil
}

// SaveFailure writes the run's failure record at the run root.
func (s *FileStore) SaveFailure(rec *schemas.FailureRecord) error {
	return s.writeJSON(filepath.Join(s.runDir, "failure.json"), rec)
}

// SaveResult writes the run summary at the run root.
func (s *FileStore) SaveResult(res *schemas.RunResult) error {
	return s.writeJSON(filepath.Join(s.runDir, "result.json"), res)
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := artifactJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitize makes an arbitrary name safe as a single path segment.
func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	clean = strings.Trim(clean, ".")
	if clean == "" {
		return "unnamed"
	}
	return clean
}
