package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. It is the default
// for tests and one-shot runs that do not need durability.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]*RunCheckpoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*RunCheckpoint)}
}

// Load implements [Store].
func (s *MemoryStore) Load(_ context.Context, runID string) (*RunCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

// Save implements [Store].
func (s *MemoryStore) Save(_ context.Context, c *RunCheckpoint) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[c.RunID] = c.Clone()
	return nil
}

// Delete implements [Store].
func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// List implements [Store].
func (s *MemoryStore) List(_ context.Context) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]RunSummary, 0, len(s.runs))
	for _, c := range s.runs {
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
