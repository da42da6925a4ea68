// Package culldb persists culling run history to SQLite: one row per
// observation processed, with a child row per strategy pass.
package culldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the run store at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("culldb: open %s: %w", path, err)
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Run is one observation's trip through the culling engine.
type Run struct {
	ID            string
	Observation   string
	Frontend      string
	SN            float64
	Status        string
	Criterion     string
	Iterations    int
	TotalRejected int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// StrategyPass is one strategy's portion of a run.
type StrategyPass struct {
	RunID      string
	Strategy   string
	Iterations int
	Rejected   int
	Converged  bool
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun inserts a run and its strategy passes in one transaction. A
// run with no ID gets one assigned; the stored ID is returned.
func (s *Store) RecordRun(ctx context.Context, run Run, passes []StrategyPass) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("culldb: begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cull_runs (
			run_id, observation, frontend, sn, status, criterion,
			iterations, total_rejected, started_at_ns, finished_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Observation, run.Frontend, run.SN, run.Status, run.Criterion,
		run.Iterations, run.TotalRejected, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("culldb: insert run: %w", err)
	}

	for _, p := range passes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cull_strategy_passes (run_id, strategy, iterations, rejected, converged)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, p.Strategy, p.Iterations, p.Rejected, p.Converged,
		)
		if err != nil {
			return "", fmt.Errorf("culldb: insert strategy pass: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("culldb: commit run: %w", err)
	}
	return run.ID, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.QueryContext(ctx,
		`SELECT run_id, observation, frontend, sn, status, criterion,
			iterations, total_rejected, started_at_ns, finished_at_ns
		FROM cull_runs ORDER BY started_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("culldb: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedNs, finishedNs int64
		if err := rows.Scan(&r.ID, &r.Observation, &r.Frontend, &r.SN, &r.Status,
			&r.Criterion, &r.Iterations, &r.TotalRejected, &startedNs, &finishedNs); err != nil {
			return nil, fmt.Errorf("culldb: scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNs)
		r.FinishedAt = time.Unix(0, finishedNs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("culldb: iterate runs: %w", err)
	}
	return runs, nil
}

// Passes returns the strategy passes of a run in insertion order.
func (s *Store) Passes(ctx context.Context, runID string) ([]StrategyPass, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT run_id, strategy, iterations, rejected, converged
		FROM cull_strategy_passes WHERE run_id = ? ORDER BY pass_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("culldb: query passes: %w", err)
	}
	defer rows.Close()

	var passes []StrategyPass
	for rows.Next() {
		var p StrategyPass
		if err := rows.Scan(&p.RunID, &p.Strategy, &p.Iterations, &p.Rejected, &p.Converged); err != nil {
			return nil, fmt.Errorf("culldb: scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("culldb: iterate passes: %w", err)
	}
	return passes, nil
}
