package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/callscale/callscore/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists checkpoints in a single SQLite database file.
// One row per run plus one row per completed criterion.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path,
// applies pragmas and migrations, and returns the store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			if stmt == "PRAGMA journal_mode=WAL;" {
				log.Warn().Err(err).Msg("sqlite: WAL mode not enabled")
				continue
			}
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Load implements [Store].
func (s *SQLiteStore) Load(ctx context.Context, runID string) (*RunCheckpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile, pending, terminal, created_at, updated_at FROM checkpoints WHERE run_id = ?`,
		runID)

	var (
		profile     string
		pendingJSON string
		terminal    bool
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&profile, &pendingJSON, &terminal, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", runID, err)
	}

	c := &RunCheckpoint{
		RunID:     runID,
		Profile:   models.Profile(profile),
		Completed: make(map[string]models.CriterionResult),
		Pending:   make(map[string]struct{}),
		Terminal:  terminal,
	}

	var pending []string
	if err := json.Unmarshal([]byte(pendingJSON), &pending); err != nil {
		return nil, fmt.Errorf("checkpoint %s has corrupt pending set: %w", runID, err)
	}
	for _, id := range pending {
		c.Pending[id] = struct{}{}
	}

	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("checkpoint %s has corrupt created_at: %w", runID, err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("checkpoint %s has corrupt updated_at: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT criterion_id, value, payload, raw FROM checkpoint_results WHERE run_id = ?`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("loading results for %s: %w", runID, err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			result  models.CriterionResult
			payload sql.NullString
		)
		if err := rows.Scan(&result.CriterionID, &result.Value, &payload, &result.Raw); err != nil {
			return nil, fmt.Errorf("scanning result for %s: %w", runID, err)
		}
		if payload.Valid {
			result.Payload = json.RawMessage(payload.String)
		}
		c.Completed[result.CriterionID] = result
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results for %s: %w", runID, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("stored checkpoint %s is corrupt: %w", runID, err)
	}

	return c, nil
}

// Save implements [Store]. The checkpoint row and its results are
// replaced in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, c *RunCheckpoint) error {
	if err := c.Validate(); err != nil {
		return err
	}

	pendingJSON, err := json.Marshal(c.PendingIDs())
	if err != nil {
		return fmt.Errorf("marshaling pending set: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save for %s: %w", c.RunID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, profile, pending, terminal, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			pending = excluded.pending,
			terminal = excluded.terminal,
			updated_at = excluded.updated_at`,
		c.RunID, c.Profile.String(), string(pendingJSON), c.Terminal,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", c.RunID, err)
	}

	for id, result := range c.Completed {
		var payload any
		if result.Payload != nil {
			payload = string(result.Payload)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checkpoint_results (run_id, criterion_id, value, payload, raw)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, criterion_id) DO UPDATE SET
				value = excluded.value,
				payload = excluded.payload,
				raw = excluded.raw`,
			c.RunID, id, result.Value, payload, result.Raw)
		if err != nil {
			return fmt.Errorf("saving result %s for %s: %w", id, c.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing checkpoint %s: %w", c.RunID, err)
	}
	return nil
}

// Delete implements [Store].
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", runID, err)
	}
	return nil
}

// List implements [Store].
func (s *SQLiteStore) List(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.run_id, c.profile, c.pending, c.terminal, c.updated_at,
		       (SELECT COUNT(*) FROM checkpoint_results r WHERE r.run_id = c.run_id)
		FROM checkpoints c
		ORDER BY c.run_id`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var summaries []RunSummary
	for rows.Next() {
		var (
			summary     RunSummary
			profile     string
			pendingJSON string
			updatedAt   string
		)
		if err := rows.Scan(&summary.RunID, &profile, &pendingJSON, &summary.Terminal, &updatedAt, &summary.Completed); err != nil {
			return nil, fmt.Errorf("scanning checkpoint row: %w", err)
		}
		summary.Profile = models.Profile(profile)

		var pending []string
		if err := json.Unmarshal([]byte(pendingJSON), &pending); err == nil {
			summary.Pending = len(pending)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			summary.UpdatedAt = ts
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading checkpoint rows: %w", err)
	}
	return summaries, nil
}
