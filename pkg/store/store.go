// Package store persists completed evaluation runs in PostgreSQL. Each run is
// stored as one row with the consolidated analysis and its summary as JSONB.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/engine"
)

// ErrRunNotFound is returned when a run ID has no stored row
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted evaluation run
type RunRecord struct {
	RunID        uuid.UUID       `db:"run_id" json:"run_id"`
	Filename     string          `db:"filename" json:"filename"`
	TotalRows    int             `db:"total_rows" json:"total_rows"`
	TotalColumns int             `db:"total_columns" json:"total_columns"`
	Anonymized   bool            `db:"anonymized" json:"anonymized"`
	Consolidated json.RawMessage `db:"consolidated" json:"consolidated"`
	Summary      json.RawMessage `db:"summary" json:"summary"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// RunStore persists evaluation runs
type RunStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRunStore creates a run store and ensures the runs table exists
func NewRunStore(db *sqlx.DB, logger *zap.Logger) (*RunStore, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	store := &RunStore{
		db:     db,
		logger: logger.With(zap.String("component", "run-store")),
	}

	if err := store.setupRunsTable(); err != nil {
		return nil, fmt.Errorf("failed to setup runs table: %w", err)
	}
	return store, nil
}

// setupRunsTable ensures the evaluation_runs table exists
func (s *RunStore) setupRunsTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.evaluation_runs (
			run_id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			total_rows INTEGER NOT NULL,
			total_columns INTEGER NOT NULL,
			anonymized BOOLEAN NOT NULL DEFAULT FALSE,
			consolidated JSONB NOT NULL,
			summary JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	s.logger.Info("Ensured evaluation_runs table exists")
	return nil
}

// SaveRun persists one completed run
func (s *RunStore) SaveRun(ctx context.Context, run *engine.RunResult) error {
	if run == nil || run.Consolidated == nil {
		return errors.New("run result cannot be nil")
	}

	consolidated, err := json.Marshal(run.Consolidated)
	if err != nil {
		return fmt.Errorf("failed to marshal consolidated analysis: %w", err)
	}
	summary, err := json.Marshal(engine.Summarize(run.Consolidated))
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	meta := run.Consolidated.Metadata
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO public.evaluation_runs
		(run_id, filename, total_rows, total_columns, anonymized, consolidated, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		run.RunID,
		meta.Filename,
		meta.TotalRows,
		meta.TotalColumns,
		meta.Anonymized,
		consolidated,
		summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	s.logger.Info("Saved evaluation run",
		zap.String("runID", run.RunID.String()),
		zap.String("filename", meta.Filename))
	return nil
}

// GetRun fetches one run by ID
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	var record RunRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT run_id, filename, total_rows, total_columns, anonymized,
		       consolidated, summary, created_at
		FROM public.evaluation_runs
		WHERE run_id = $1
	`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return &record, nil
}

// ListRuns returns the most recent runs, newest first
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []RunRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT run_id, filename, total_rows, total_columns, anonymized,
		       consolidated, summary, created_at
		FROM public.evaluation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// DeleteRun removes one run by ID
func (s *RunStore) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM public.evaluation_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRunNotFound
	}
	return nil
}
