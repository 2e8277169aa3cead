// Package scheduler holds the due-time table spec.md §4.11 describes:
// one row per connector with its cron expression and next fire time, a
// periodic tick that starts each due run in its own goroutine, and
// single-flight-per-connector execution with crash recovery on restart.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/federails/corequery/internal/connector"
)

// ErrAlreadyRunning is returned by Trigger when the connector already has
// a run in flight.
var ErrAlreadyRunning = errors.New("scheduler: connector already running")

// ConnectorSource resolves a connector's implementation and config by id,
// the way the HTTP API's CRUD layer would from a connectors table.
type ConnectorSource interface {
	Connector(connectorID string) (connector.Connector, map[string]string, error)
}

// SinkFactory builds the Sink a connector run writes documents to, given
// the connector id — ordinarily a connector.SyncSink wrapping the
// metadata store.
type SinkFactory func(ctx context.Context, connectorID string) (connector.Sink, error)

// EventSink receives run lifecycle notifications for delivery elsewhere
// (the webhook sink, in production). Kept narrow so the scheduler has no
// compile-time dependency on the webhook package.
type EventSink interface {
	Emit(ctx context.Context, event string, connectorID string, detail map[string]string)
}

// noopEventSink discards every event; used when no EventSink is wired.
type noopEventSink struct{}

func (noopEventSink) Emit(context.Context, string, string, map[string]string) {}

// RunResult is what a single connector execution produced, independent
// of persistence.
type RunResult struct {
	Stats *connector.RunStats
	Err   error
}

const (
	tickInterval = time.Second
	runIDPrefix  = "run_"
)
