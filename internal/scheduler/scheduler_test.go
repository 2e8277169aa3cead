package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/store"
)

// fakeRunStore is an in-memory store.RunStore double, avoiding a real
// SQLite database for scheduler-level unit tests.
type fakeRunStore struct {
	mu        sync.Mutex
	schedules map[string]store.Schedule
	runs      map[string]store.Run
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{schedules: map[string]store.Schedule{}, runs: map[string]store.Run{}}
}

func (f *fakeRunStore) UpsertSchedule(_ context.Context, sched store.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[sched.ConnectorID] = sched
	return nil
}

func (f *fakeRunStore) GetSchedule(_ context.Context, connectorID string) (*store.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sched, ok := f.schedules[connectorID]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

func (f *fakeRunStore) DueSchedules(_ context.Context, asOf time.Time) ([]store.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Schedule
	for _, sched := range f.schedules {
		if sched.Enabled && !sched.NextFire.After(asOf) {
			out = append(out, sched)
		}
	}
	return out, nil
}

func (f *fakeRunStore) StartRun(_ context.Context, run store.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.Status = "running"
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) FinishRun(_ context.Context, runID, status, errorReason string, stats store.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		run = store.Run{ID: runID}
	}
	run.Status = status
	run.ErrorReason = errorReason
	run.Seen, run.Upserted, run.Created, run.Deleted, run.Failed = stats.Seen, stats.Upserted, stats.Created, stats.Deleted, stats.Failed
	now := time.Now()
	run.FinishedAt = &now
	f.runs[runID] = run
	return nil
}

func (f *fakeRunStore) GetRun(_ context.Context, runID string) (*store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (f *fakeRunStore) RunningRuns(_ context.Context) ([]store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Run
	for _, run := range f.runs {
		if run.Status == "running" {
			out = append(out, run)
		}
	}
	return out, nil
}

func (f *fakeRunStore) LatestRun(_ context.Context, connectorID string) (*store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *store.Run
	for _, run := range f.runs {
		r := run
		if run.ConnectorID == connectorID && (latest == nil || run.StartedAt.After(latest.StartedAt)) {
			latest = &r
		}
	}
	return latest, nil
}

// blockingConnector runs until its release channel is closed, so tests
// can assert Trigger rejects a concurrent call while one is in flight.
type blockingConnector struct {
	release chan struct{}
	stopped bool
}

func (b *blockingConnector) ValidateConfig(map[string]string) error { return nil }
func (b *blockingConnector) Run(ctx context.Context, cfg map[string]string, sink connector.Sink) (*connector.RunStats, error) {
	<-b.release
	return &connector.RunStats{Seen: 1, Upserted: 1}, nil
}
func (b *blockingConnector) Stop() error { b.stopped = true; return nil }

type instantConnector struct {
	stats *connector.RunStats
	err   error
}

func (i *instantConnector) ValidateConfig(map[string]string) error { return nil }
func (i *instantConnector) Run(context.Context, map[string]string, connector.Sink) (*connector.RunStats, error) {
	return i.stats, i.err
}
func (i *instantConnector) Stop() error { return nil }

type fakeSource struct {
	conns map[string]connector.Connector
}

func (f *fakeSource) Connector(id string) (connector.Connector, map[string]string, error) {
	c, ok := f.conns[id]
	if !ok {
		return nil, nil, fmt.Errorf("unknown connector %s", id)
	}
	return c, map[string]string{}, nil
}

type noopSink struct{}

func (noopSink) Put(context.Context, *store.Document) error { return nil }

func testSinkFactory(context.Context, string) (connector.Sink, error) {
	return noopSink{}, nil
}

func TestScheduler_Trigger_RunsConnectorAndPersistsRun(t *testing.T) {
	runs := newFakeRunStore()
	conn := &instantConnector{stats: &connector.RunStats{Seen: 3, Upserted: 2}}
	source := &fakeSource{conns: map[string]connector.Connector{"c1": conn}}

	sched := New(runs, source, testSinkFactory, nil, nil)
	err := sched.Trigger(context.Background(), "c1")
	require.NoError(t, err)

	run, err := runs.LatestRun(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 3, run.Seen)
}

func TestScheduler_Trigger_RejectsConcurrentRunForSameConnector(t *testing.T) {
	runs := newFakeRunStore()
	blocker := &blockingConnector{release: make(chan struct{})}
	source := &fakeSource{conns: map[string]connector.Connector{"c1": blocker}}

	sched := New(runs, source, testSinkFactory, nil, nil)

	go func() { _ = sched.Trigger(context.Background(), "c1") }()
	// give the goroutine a chance to register itself as running
	for i := 0; i < 100 && !sched.IsRunning("c1"); i++ {
		time.Sleep(time.Millisecond)
	}

	err := sched.Trigger(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(blocker.release)
}

// finishingSink mimics *SyncSink: a Finisher whose stats are the
// authoritative run counters.
type finishingSink struct {
	noopSink
	stats *connector.RunStats
}

func (f finishingSink) Finish(context.Context) (*connector.RunStats, error) { return f.stats, nil }

func TestScheduler_Trigger_SinkFinishStatsAreAuthoritative(t *testing.T) {
	runs := newFakeRunStore()
	// The connector's own tallies over-count: it Put 5 rows, but the sink
	// skipped 4 as unchanged and created only 1. Only its failure count
	// survives the merge.
	conn := &instantConnector{stats: &connector.RunStats{Seen: 5, Upserted: 5, Failed: 1, Errors: []string{"scan row: bad value"}}}
	source := &fakeSource{conns: map[string]connector.Connector{"c1": conn}}
	sink := finishingSink{stats: &connector.RunStats{Seen: 5, Upserted: 1, Created: 1, Deleted: 2}}

	sched := New(runs, source, func(context.Context, string) (connector.Sink, error) { return sink, nil }, nil, nil)
	require.NoError(t, sched.Trigger(context.Background(), "c1"))

	run, err := runs.LatestRun(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 5, run.Seen)
	assert.Equal(t, 1, run.Upserted)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 2, run.Deleted)
	assert.Equal(t, 1, run.Failed)
}

func TestScheduler_Trigger_UnknownConnectorErrors(t *testing.T) {
	runs := newFakeRunStore()
	source := &fakeSource{conns: map[string]connector.Connector{}}
	sched := New(runs, source, testSinkFactory, nil, nil)

	err := sched.Trigger(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduler_Trigger_ConnectorErrorMarksRunFailed(t *testing.T) {
	runs := newFakeRunStore()
	conn := &instantConnector{stats: &connector.RunStats{}, err: fmt.Errorf("boom")}
	source := &fakeSource{conns: map[string]connector.Connector{"c1": conn}}
	sched := New(runs, source, testSinkFactory, nil, nil)

	err := sched.Trigger(context.Background(), "c1")
	assert.Error(t, err)

	run, _ := runs.LatestRun(context.Background(), "c1")
	require.NotNil(t, run)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, "boom", run.ErrorReason)
}

func TestScheduler_RecoverCrashedRuns_MarksRunningAsFailed(t *testing.T) {
	runs := newFakeRunStore()
	_ = runs.StartRun(context.Background(), store.Run{ID: "run_1", ConnectorID: "c1", StartedAt: time.Now()})

	sched := New(runs, &fakeSource{conns: map[string]connector.Connector{}}, testSinkFactory, nil, nil)
	n, err := sched.RecoverCrashedRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, _ := runs.GetRun(context.Background(), "run_1")
	require.NotNil(t, run)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, "crash", run.ErrorReason)
}

func TestScheduler_SetSchedule_RejectsInvalidCron(t *testing.T) {
	runs := newFakeRunStore()
	sched := New(runs, &fakeSource{}, testSinkFactory, nil, nil)
	err := sched.SetSchedule(context.Background(), "c1", "not a cron expression")
	assert.Error(t, err)
}

func TestScheduler_SetSchedule_PersistsNextFire(t *testing.T) {
	runs := newFakeRunStore()
	sched := New(runs, &fakeSource{}, testSinkFactory, nil, nil)
	err := sched.SetSchedule(context.Background(), "c1", "*/5 * * * *")
	require.NoError(t, err)

	got, err := runs.GetSchedule(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NextFire.After(time.Now()))
}
