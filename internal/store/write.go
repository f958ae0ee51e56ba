package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one journaled engine Start.
type Run struct {
	ID           string    `json:"id"`
	Seq          int64     `json:"seq"`
	ConfigName   string    `json:"config_name"`
	ConfigHash   string    `json:"config_hash"`
	Status       RunStatus `json:"status"`
	Frames       int64     `json:"frames"`
	TotalSeconds float64   `json:"total_seconds"`
	Error        string    `json:"error,omitempty"`
}

// Frame is the delta time of one tick.
type Frame struct {
	Frame int64   `json:"frame"`
	Delta float64 `json:"delta"`
}

// BeginRun inserts a new run in the running state and assigns its seq.
//
// The seq is computed inside the inserting transaction, so concurrent writers
// sharing the single connection still get strictly increasing values.
func (s *Store) BeginRun(ctx context.Context, id, configName, configHash string) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("begin run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, config_name, config_hash, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, seq, configName, configHash, string(RunStatusRunning))
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run: commit: %w", err)
	}

	return Run{
		ID:         id,
		Seq:        seq,
		ConfigName: configName,
		ConfigHash: configHash,
		Status:     RunStatusRunning,
	}, nil
}

// WriteFrames inserts a batch of frames for a run in a single transaction.
// Frames already present are silently ignored.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteFrames(ctx context.Context, runID string, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frames: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frames (run_id, frame, delta)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, frame) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write frames: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.ExecContext(ctx, runID, f.Frame, f.Delta); err != nil {
			return fmt.Errorf("write frames: frame %d: %w", f.Frame, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frames: commit: %w", err)
	}
	return nil
}

// FinishRun records the final state of a run.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, frames int64, totalSeconds float64, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, frames = ?, total_seconds = ?, error = ?
		WHERE id = ?
	`, string(status), frames, totalSeconds, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}
