package store

import (
	"context"
	"fmt"
)

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, seq, config_name, config_hash, status, frames, total_seconds, error`

func scanRun(row scanner) (Run, error) {
	var r Run
	var status string
	if err := row.Scan(&r.ID, &r.Seq, &r.ConfigName, &r.ConfigHash, &status, &r.Frames, &r.TotalSeconds, &r.Error); err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)
	return r, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns all runs ordered by seq ASC.
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadFrames returns the frames of a run ordered by frame number.
// A limit <= 0 returns every frame.
// Returns an empty slice (not nil) if the run has no frames.
func (s *Store) ReadFrames(ctx context.Context, runID string, limit int) ([]Frame, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, delta
		FROM frames
		WHERE run_id = ?
		ORDER BY frame ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []Frame{}
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.Frame, &f.Delta); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}
