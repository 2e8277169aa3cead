package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schedule is one connector's cron expression and next computed fire
// time, per spec.md §4.11's `{connector_id, schedule_expression,
// next_fire}` table.
type Schedule struct {
	ConnectorID        string
	ScheduleExpression string
	NextFire           time.Time
	Enabled            bool
}

// Run is one persisted connector execution, covering both in-flight runs
// (status "running") and finished ones.
type Run struct {
	ID          string
	ConnectorID string
	Status      string // "running", "completed", "failed"
	Seen        int
	Upserted    int
	Created     int
	Deleted     int
	Failed      int
	ErrorReason string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// RunStore persists connector schedules and run history, shared with the
// metadata store's SQLite database.
type RunStore interface {
	UpsertSchedule(ctx context.Context, sched Schedule) error
	GetSchedule(ctx context.Context, connectorID string) (*Schedule, error)
	DueSchedules(ctx context.Context, asOf time.Time) ([]Schedule, error)

	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID, status, errorReason string, stats Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	RunningRuns(ctx context.Context) ([]Run, error)
	LatestRun(ctx context.Context, connectorID string) (*Run, error)
}

var _ RunStore = (*SQLiteStore)(nil)

// UpsertSchedule creates or updates a connector's schedule row.
func (s *SQLiteStore) UpsertSchedule(ctx context.Context, sched Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connector_schedules (connector_id, schedule_expression, next_fire, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(connector_id) DO UPDATE SET
			schedule_expression = excluded.schedule_expression,
			next_fire = excluded.next_fire,
			enabled = excluded.enabled
	`, sched.ConnectorID, sched.ScheduleExpression, sched.NextFire, boolToInt(sched.Enabled))
	return err
}

// GetSchedule fetches a single connector's schedule, or nil if unset.
func (s *SQLiteStore) GetSchedule(ctx context.Context, connectorID string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sched Schedule
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT connector_id, schedule_expression, next_fire, enabled FROM connector_schedules WHERE connector_id = ?`,
		connectorID,
	).Scan(&sched.ConnectorID, &sched.ScheduleExpression, &sched.NextFire, &enabled)
	if err != nil {
		return nil, nil
	}
	sched.Enabled = enabled != 0
	return &sched, nil
}

// DueSchedules returns every enabled schedule whose next_fire is at or
// before asOf, for the scheduler's periodic tick.
func (s *SQLiteStore) DueSchedules(ctx context.Context, asOf time.Time) ([]Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT connector_id, schedule_expression, next_fire, enabled FROM connector_schedules
		 WHERE enabled = 1 AND next_fire <= ?`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sched Schedule
		var enabled int
		if err := rows.Scan(&sched.ConnectorID, &sched.ScheduleExpression, &sched.NextFire, &enabled); err != nil {
			return nil, err
		}
		sched.Enabled = enabled != 0
		out = append(out, sched)
	}
	return out, rows.Err()
}

// StartRun inserts a new run row with status "running".
func (s *SQLiteStore) StartRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connector_runs (id, connector_id, status, started_at)
		VALUES (?, ?, 'running', ?)
	`, run.ID, run.ConnectorID, run.StartedAt)
	return err
}

// FinishRun marks a run terminal (status "completed" or "failed") and
// records its final counters.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status, errorReason string, stats Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE connector_runs SET
			status = ?, seen = ?, upserted = ?, created = ?, deleted = ?, failed = ?,
			error_reason = ?, finished_at = ?
		WHERE id = ?
	`, status, stats.Seen, stats.Upserted, stats.Created, stats.Deleted, stats.Failed,
		errorReason, time.Now(), runID)
	return err
}

// GetRun fetches a single run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanRunRow(s.db.QueryRowContext(ctx, runColumns+` FROM connector_runs WHERE id = ?`, runID))
}

// RunningRuns returns every run currently marked "running", used at
// process start to detect and recover runs orphaned by a crash.
func (s *SQLiteStore) RunningRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, runColumns+` FROM connector_runs WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunRows(rows)
}

// LatestRun returns a connector's most recently started run, or nil if
// it has never run.
func (s *SQLiteStore) LatestRun(ctx context.Context, connectorID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanRunRow(s.db.QueryRowContext(ctx,
		runColumns+` FROM connector_runs WHERE connector_id = ? ORDER BY started_at DESC LIMIT 1`, connectorID))
}

const runColumns = `SELECT id, connector_id, status, seen, upserted, created, deleted, failed, error_reason, started_at, finished_at`

func (s *SQLiteStore) scanRunRow(row *sql.Row) (*Run, error) {
	var run Run
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.ConnectorID, &run.Status, &run.Seen, &run.Upserted,
		&run.Created, &run.Deleted, &run.Failed, &run.ErrorReason, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, nil
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

func scanRunRows(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var run Run
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.ConnectorID, &run.Status, &run.Seen, &run.Upserted,
			&run.Created, &run.Deleted, &run.Failed, &run.ErrorReason, &run.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
