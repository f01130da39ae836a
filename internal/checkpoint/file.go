package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore persists each run as one JSON document under a directory.
// Writes go through a temp file and rename so a crash never leaves a
// half-written checkpoint behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created
// on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.dir, runID+".json"), nil
}

// Load implements [Store].
func (s *FileStore) Load(_ context.Context, runID string) (*RunCheckpoint, error) {
	path, err := s.path(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", runID, err)
	}

	var c RunCheckpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", runID, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("stored checkpoint %s is corrupt: %w", runID, err)
	}

	return &c, nil
}

// Save implements [Store].
func (s *FileStore) Save(_ context.Context, c *RunCheckpoint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	path, err := s.path(c.RunID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint %s: %w", c.RunID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", c.RunID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing checkpoint %s: %w", c.RunID, err)
	}

	return nil
}

// Delete implements [Store].
func (s *FileStore) Delete(_ context.Context, runID string) error {
	path, err := s.path(runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting checkpoint %s: %w", runID, err)
	}
	return nil
}

// List implements [Store].
func (s *FileStore) List(ctx context.Context) ([]RunSummary, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(s.dir)
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint directory: %w", err)
	}

	var summaries []RunSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), ".json")
		c, err := s.Load(ctx, runID)
		if err != nil || c == nil {
			continue
		}
		summaries = append(summaries, RunSummary{
			RunID:     c.RunID,
			Profile:   c.Profile,
			Completed: len(c.Completed),
			Pending:   len(c.Pending),
			Terminal:  c.Terminal,
			UpdatedAt: c.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RunID < summaries[j].RunID
	})
	return summaries, nil
}
