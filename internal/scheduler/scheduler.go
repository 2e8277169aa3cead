package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/store"
)

// Scheduler holds the connector due-time table and runs each due
// connector in its own goroutine, one in-flight run per connector at a time.
type Scheduler struct {
	runs   store.RunStore
	source ConnectorSource
	sinks  SinkFactory
	events EventSink
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]connector.Connector // connectorID -> the Connector currently running, for Stop()

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Scheduler. events may be nil, in which case run lifecycle
// notifications are simply dropped.
func New(runs store.RunStore, source ConnectorSource, sinks SinkFactory, events EventSink, logger *slog.Logger) *Scheduler {
	if events == nil {
		events = noopEventSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runs:    runs,
		source:  source,
		sinks:   sinks,
		events:  events,
		logger:  logger,
		running: make(map[string]connector.Connector),
	}
}

// RecoverCrashedRuns marks every run still "running" at process start as
// "failed" with reason "crash", per spec.md §4.11. Call once before
// Start.
func (s *Scheduler) RecoverCrashedRuns(ctx context.Context) (int, error) {
	stuck, err := s.runs.RunningRuns(ctx)
	if err != nil {
		return 0, fmt.Errorf("scheduler: list running runs: %w", err)
	}
	for _, run := range stuck {
		if err := s.runs.FinishRun(ctx, run.ID, "failed", "crash", store.Run{}); err != nil {
			return 0, fmt.Errorf("scheduler: mark run %s crashed: %w", run.ID, err)
		}
		s.events.Emit(ctx, "connector.run.failed", run.ConnectorID, map[string]string{"run_id": run.ID, "reason": "crash"})
	}
	return len(stuck), nil
}

// SetSchedule registers or updates a connector's cron expression,
// computing and persisting its first next_fire.
func (s *Scheduler) SetSchedule(ctx context.Context, connectorID, cronExpr string) error {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", cronExpr, err)
	}
	return s.runs.UpsertSchedule(ctx, store.Schedule{
		ConnectorID:        connectorID,
		ScheduleExpression: cronExpr,
		NextFire:           sched.Next(time.Now()),
		Enabled:            true,
	})
}

// Start runs the periodic tick loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.tickLoop(ctx)
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

// fireDue triggers every connector whose schedule is due, logging and
// continuing past individual failures so one bad connector never stalls
// the tick.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	due, err := s.runs.DueSchedules(ctx, now)
	if err != nil {
		s.logger.Error("scheduler: list due schedules failed", "error", err)
		return
	}
	for _, sched := range due {
		sched := sched
		go func() {
			if err := s.Trigger(ctx, sched.ConnectorID); err != nil && err != ErrAlreadyRunning {
				s.logger.Error("scheduler: triggered run failed", "connector_id", sched.ConnectorID, "error", err)
			}
		}()
		s.advanceSchedule(ctx, sched, now)
	}
}

func (s *Scheduler) advanceSchedule(ctx context.Context, sched store.Schedule, now time.Time) {
	parsed, err := cron.ParseStandard(sched.ScheduleExpression)
	if err != nil {
		s.logger.Error("scheduler: re-parse schedule failed", "connector_id", sched.ConnectorID, "error", err)
		return
	}
	sched.NextFire = parsed.Next(now)
	if err := s.runs.UpsertSchedule(ctx, sched); err != nil {
		s.logger.Error("scheduler: advance schedule failed", "connector_id", sched.ConnectorID, "error", err)
	}
}

// IsRunning reports whether connectorID currently has a run in flight.
func (s *Scheduler) IsRunning(connectorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[connectorID]
	return ok
}

// Stop signals cooperative cancellation on connectorID's active run, if
// any. It does not wait for the run to actually finish.
func (s *Scheduler) Stop(connectorID string) error {
	s.mu.Lock()
	active, ok := s.running[connectorID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: connector %s is not running", connectorID)
	}
	return active.Stop()
}

// Close stops the tick loop and waits for it to exit.
func (s *Scheduler) Close() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

// Trigger enqueues an immediate run of connectorID, rejecting with
// ErrAlreadyRunning if one is already in flight. It blocks until the run
// completes; callers that want fire-and-forget triggering should call it
// from a goroutine, as fireDue does.
func (s *Scheduler) Trigger(ctx context.Context, connectorID string) error {
	conn, cfg, err := s.source.Connector(connectorID)
	if err != nil {
		return fmt.Errorf("scheduler: resolve connector %s: %w", connectorID, err)
	}

	s.mu.Lock()
	if _, inFlight := s.running[connectorID]; inFlight {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running[connectorID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, connectorID)
		s.mu.Unlock()
	}()

	runID := runIDPrefix + uuid.NewString()
	startedAt := time.Now()
	if err := s.runs.StartRun(ctx, store.Run{ID: runID, ConnectorID: connectorID, StartedAt: startedAt}); err != nil {
		return fmt.Errorf("scheduler: persist run start: %w", err)
	}
	s.events.Emit(ctx, "connector.run.started", connectorID, map[string]string{"run_id": runID})

	sink, err := s.sinks(ctx, connectorID)
	if err != nil {
		_ = s.runs.FinishRun(ctx, runID, "failed", err.Error(), store.Run{})
		s.events.Emit(ctx, "connector.run.failed", connectorID, map[string]string{"run_id": runID, "reason": err.Error()})
		return fmt.Errorf("scheduler: build sink for %s: %w", connectorID, err)
	}

	stats, runErr := conn.Run(ctx, cfg, sink)

	// The sink's Finish stats are authoritative: the sync layer is the
	// only place that knows which Puts actually created or updated a row
	// versus being skipped as unchanged. The connector's own tallies only
	// contribute its fetch-side failures.
	if finisher, ok := sink.(connector.Finisher); ok {
		finishStats, finishErr := finisher.Finish(ctx)
		if finishErr != nil {
			s.logger.Error("scheduler: sync finish failed", "connector_id", connectorID, "error", finishErr)
			if runErr == nil {
				runErr = finishErr
			}
		}
		if finishStats != nil {
			if stats != nil {
				finishStats.Failed += stats.Failed
				finishStats.Errors = append(finishStats.Errors, stats.Errors...)
			}
			stats = finishStats
		}
	}

	finalStats := store.Run{}
	if stats != nil {
		finalStats = store.Run{Seen: stats.Seen, Upserted: stats.Upserted, Created: stats.Created, Deleted: stats.Deleted, Failed: stats.Failed}
	}

	status := "completed"
	reason := ""
	if runErr != nil {
		status = "failed"
		reason = runErr.Error()
	}
	if err := s.runs.FinishRun(ctx, runID, status, reason, finalStats); err != nil {
		s.logger.Error("scheduler: persist run finish failed", "run_id", runID, "error", err)
	}
	s.events.Emit(ctx, "connector.run."+status, connectorID, map[string]string{"run_id": runID})

	return runErr
}
