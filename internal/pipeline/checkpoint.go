package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// CheckpointStore persists run progress to
// {dir}/checkpoint-{collection}.json. Saves are atomic: write to a temp
// file in the same directory, fsync, rename.
type CheckpointStore struct {
	path   string
	logger *slog.Logger
}

// NewCheckpointStore creates a store for the given collection.
func NewCheckpointStore(dir, collection string, logger *slog.Logger) *CheckpointStore {
	return &CheckpointStore{
		path:   filepath.Join(dir, fmt.Sprintf("checkpoint-%s.json", collection)),
		logger: logger,
	}
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string { return s.path }

// Load reads the stored checkpoint. A missing file is not an error: it
// returns (nil, nil) and the run starts fresh.
func (s *CheckpointStore) Load() (*domain.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically. A crash mid-save leaves the
// previous file intact.
func (s *CheckpointStore) Save(cp *domain.Checkpoint) error {
	cp.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	checkpointSaves.Inc()
	s.logger.Debug("checkpoint saved",
		slog.String("path", s.path),
		slog.Int("last_successful_page", cp.LastSuccessfulPage),
	)
	return nil
}
