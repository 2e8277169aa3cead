// Package connector defines the capability interface every ingestion
// source implements, the shared incremental-sync algorithm they all run
// through, and the per-kind connectors (folder, web, SQL, Nostr,
// podcast/RSS) built on top of it.
package connector

import (
	"context"
	"time"

	"github.com/federails/corequery/internal/store"
)

// Kind names a connector implementation; persisted on the connectors row.
type Kind string

const (
	KindFolder  Kind = "folder"
	KindWeb     Kind = "web"
	KindSQL     Kind = "sql"
	KindNostr   Kind = "nostr"
	KindPodcast Kind = "podcast"
)

// Connector is the capability every ingestion source implements. Composed
// of small methods rather than an inheritance hierarchy, matching the
// store package's BM25Index/VectorStore/MetadataStore split.
type Connector interface {
	// ValidateConfig checks a connector's config map before it is saved,
	// so configuration errors surface at creation time, not at first run.
	ValidateConfig(cfg map[string]string) error

	// Run executes one ingestion pass, streaming documents to sink as
	// they're produced, and returns summary stats when the source is
	// exhausted or ctx is cancelled.
	Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error)

	// Stop requests a graceful halt of an in-flight Run.
	Stop() error
}

// Sink is what a Connector writes documents to. Implemented by
// *SyncSink in sync.go, which applies the incremental-sync algorithm
// before delegating to a store.MetadataStore.
type Sink interface {
	Put(ctx context.Context, doc *store.Document) error
}

// Finisher is an optional capability of a Sink: a post-run finalization
// step run once a connector's Run has returned. *SyncSink implements it
// to run the incremental-sync delete sweep (spec.md §4.5 steps 5-6) and
// report how many documents it removed. Callers that build a Sink should
// type-assert it to Finisher and call Finish after Run returns; a Sink
// with no finalization step simply doesn't implement it.
type Finisher interface {
	Finish(ctx context.Context) (*RunStats, error)
}

// IndexStater is an optional capability of a Sink: the external-id ->
// last-modified set the index held for the run's source when the run
// began. Connectors implementing metadata-first incremental sync
// (spec.md §4.5 steps 1-3) type-assert their sink to it and diff the
// source's metadata listing against it before fetching full content.
type IndexStater interface {
	IndexState() map[string]time.Time
}

// Keeper is an optional capability of a Sink: Keep marks an external id
// as still present at the source without rewriting it, so a delete
// sweep retains rows the metadata diff classified as unchanged.
type Keeper interface {
	Keep(externalID string)
}

// RunStats summarizes one connector run, mirroring the connector_runs
// table's counters. For runs driven through a *SyncSink, the sink's
// Finish stats are the authoritative counters (they see which Puts
// actually created or updated a row); a connector's own tallies only
// stand alone when the sink has no Finisher.
type RunStats struct {
	SourceID   string
	Seen       int
	Upserted   int
	Created    int
	Deleted    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
	Errors     []string
}

// record appends a non-fatal error to stats without aborting the run.
func (s *RunStats) record(err error) {
	if err == nil {
		return
	}
	s.Failed++
	s.Errors = append(s.Errors, err.Error())
}
