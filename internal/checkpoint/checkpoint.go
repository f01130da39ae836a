// Package checkpoint persists per-run evaluation progress so a rerun
// with the same run id resumes instead of repeating finished work.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/callscale/callscore/internal/models"
)

// RunCheckpoint is the durable record of one evaluation run. Criterion
// ids move from Pending to Completed exactly once; the two sets are
// always disjoint. Terminal marks a run whose outcome was already
// reported to the caller.
type RunCheckpoint struct {
	RunID     string                            `json:"run_id"`
	Profile   models.Profile                    `json:"profile"`
	Completed map[string]models.CriterionResult `json:"completed"`
	Pending   map[string]struct{}               `json:"-"`
	Terminal  bool                              `json:"terminal"`
	CreatedAt time.Time                         `json:"created_at"`
	UpdatedAt time.Time                         `json:"updated_at"`
}

// New initializes a checkpoint with every criterion pending.
func New(runID string, profile models.Profile, criterionIDs []string) *RunCheckpoint {
	pending := make(map[string]struct{}, len(criterionIDs))
	for _, id := range criterionIDs {
		pending[id] = struct{}{}
	}
	now := time.Now().UTC()
	return &RunCheckpoint{
		RunID:     runID,
		Profile:   profile,
		Completed: make(map[string]models.CriterionResult, len(criterionIDs)),
		Pending:   pending,
		Terminal:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkCompleted records a criterion result, moving the id out of the
// pending set. Recording an id that is not pending is an error unless
// it is already completed with the same id (idempotent replay).
func (c *RunCheckpoint) MarkCompleted(result models.CriterionResult) error {
	id := result.CriterionID
	if _, done := c.Completed[id]; done {
		return nil
	}
	if _, ok := c.Pending[id]; !ok {
		return fmt.Errorf("criterion %s is not pending in run %s", id, c.RunID)
	}
	delete(c.Pending, id)
	c.Completed[id] = result
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete reports whether every criterion of the run has a result.
func (c *RunCheckpoint) Complete() bool {
	return len(c.Pending) == 0 && len(c.Completed) > 0
}

// PendingIDs returns the pending criterion ids in sorted order.
func (c *RunCheckpoint) PendingIDs() []string {
	ids := make([]string, 0, len(c.Pending))
	for id := range c.Pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy, so stores can hand out checkpoints
// without sharing mutable state with callers.
func (c *RunCheckpoint) Clone() *RunCheckpoint {
	clone := *c
	clone.Completed = make(map[string]models.CriterionResult, len(c.Completed))
	for id, res := range c.Completed {
		if res.Payload != nil {
			payload := make([]byte, len(res.Payload))
			copy(payload, res.Payload)
			res.Payload = payload
		}
		clone.Completed[id] = res
	}
	clone.Pending = make(map[string]struct{}, len(c.Pending))
	for id := range c.Pending {
		clone.Pending[id] = struct{}{}
	}
	return &clone
}

// Validate checks the structural invariants of a stored checkpoint.
func (c *RunCheckpoint) Validate() error {
	if c.RunID == "" {
		return fmt.Errorf("checkpoint has no run id")
	}
	if !c.Profile.Valid() {
		return fmt.Errorf("checkpoint %s has unknown profile %q", c.RunID, c.Profile)
	}
	for id := range c.Completed {
		if _, ok := c.Pending[id]; ok {
			return fmt.Errorf("checkpoint %s: criterion %s is both pending and completed", c.RunID, id)
		}
	}
	return nil
}

// checkpointJSON is the wire form: the pending set serializes as a
// sorted array rather than a map of empty objects.
type checkpointJSON struct {
	RunID     string                            `json:"run_id"`
	Profile   models.Profile                    `json:"profile"`
	Completed map[string]models.CriterionResult `json:"completed"`
	Pending   []string                          `json:"pending"`
	Terminal  bool                              `json:"terminal"`
	CreatedAt time.Time                         `json:"created_at"`
	UpdatedAt time.Time                         `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (c *RunCheckpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(checkpointJSON{
		RunID:     c.RunID,
		Profile:   c.Profile,
		Completed: c.Completed,
		Pending:   c.PendingIDs(),
		Terminal:  c.Terminal,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *RunCheckpoint) UnmarshalJSON(data []byte) error {
	var doc checkpointJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.RunID = doc.RunID
	c.Profile = doc.Profile
	c.Completed = doc.Completed
	if c.Completed == nil {
		c.Completed = make(map[string]models.CriterionResult)
	}
	c.Pending = make(map[string]struct{}, len(doc.Pending))
	for _, id := range doc.Pending {
		c.Pending[id] = struct{}{}
	}
	c.Terminal = doc.Terminal
	c.CreatedAt = doc.CreatedAt
	c.UpdatedAt = doc.UpdatedAt
	return nil
}

// RunSummary is the listing row for one persisted run.
type RunSummary struct {
	RunID     string
	Profile   models.Profile
	Completed int
	Pending   int
	Terminal  bool
	UpdatedAt time.Time
}

// Store persists run checkpoints. Load returns (nil, nil) on a miss.
// Save overwrites the stored checkpoint; callers only ever save
// checkpoints whose Completed set grew, so last-write-wins is safe.
type Store interface {
	Load(ctx context.Context, runID string) (*RunCheckpoint, error)
	Save(ctx context.Context, c *RunCheckpoint) error
	Delete(ctx context.Context, runID string) error
	List(ctx context.Context) ([]RunSummary, error)
}
