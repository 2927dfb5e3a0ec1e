package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides persistence for runs and their loop events.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Run is a journaled orchestrator run.
type Run struct {
	ID           string
	Change       string
	Status       string
	StoriesDone  int
	StoriesTotal int
	CreatedAt    string
	EndedAt      *string
}

// CreateRun inserts the run record and a run_started event.
func (s *Store) CreateRun(ctx context.Context, runID, changeName string) error {
	createdAt := now()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(run_id, change_name, status, created_at) VALUES(?, ?, ?, ?)`,
		runID, changeName, "running", createdAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.insertEvent(ctx, tx, runID, "run_started", changeName); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// RecordProgress updates story counters and journals a progress event.
func (s *Store) RecordProgress(ctx context.Context, runID string, done, total int) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET stories_done=?, stories_total=? WHERE run_id=?`,
		done, total, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run progress: %w", err)
	}
	if err := s.insertEvent(ctx, tx, runID, "story_progress", fmt.Sprintf("%d/%d", done, total)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record progress: %w", err)
	}
	return nil
}

// RecordEvent journals a standalone event.
func (s *Store) RecordEvent(ctx context.Context, runID, typ, message string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record event: %w", err)
	}
	if err := s.insertEvent(ctx, tx, runID, typ, message); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record event: %w", err)
	}
	return nil
}

// FinishRun sets the terminal status and end timestamp.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin finish run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET status=?, ended_at=? WHERE run_id=?`,
		status, now(), runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run status: %w", err)
	}
	if err := s.insertEvent(ctx, tx, runID, "run_finished", status); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish run: %w", err)
	}
	return nil
}

// ListRuns returns runs in reverse creation order.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, change_name, status, stories_done, stories_total, created_at, ended_at
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Change, &r.Status, &r.StoriesDone, &r.StoriesTotal, &r.CreatedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, runID, typ, message string) error {
	seq, err := s.nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events(run_id, seq, ts, type, message) VALUES(?, ?, ?, ?, ?)`,
		runID, seq, now(), typ, message); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, runID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id=?`, runID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
