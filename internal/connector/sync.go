package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/federails/corequery/internal/store"
)

// MetadataLister is the read side of incremental sync: the set of
// external ids and their last-known modification times for a source,
// satisfied by store.MetadataStore.ListSinceForSource.
type MetadataLister interface {
	ListSinceForSource(ctx context.Context, sourceID string) (map[string]time.Time, error)
}

// Writer is the write side of incremental sync, satisfied by
// store.MetadataStore.
type Writer interface {
	Upsert(ctx context.Context, doc *store.Document) (created bool, err error)
	DeleteBySource(ctx context.Context, sourceID string, keepExternalIDs []string) (removed int, err error)
}

// SyncSink adapts a Writer into a Sink, writing each Put call through as
// it arrives and running the incremental-sync delete sweep on Finish. A document is
// upserted if it's new or its LastModified is newer than what's on
// record; documents on record but absent from the run's Put calls are
// deleted by the sweep, implementing metadata-first incremental sync
// (spec.md §4.5): new/changed rows are written as seen, and rows no
// longer reported by the source are removed once the full source has
// been walked.
type SyncSink struct {
	writer   Writer
	sourceID string
	existing map[string]time.Time // external_id -> last_modified, as of sync start

	stats   *RunStats
	keepIDs []string
}

// NewSyncSink prepares a sink for sourceID, loading its current
// external-id/last-modified set from lister up front.
func NewSyncSink(ctx context.Context, lister MetadataLister, writer Writer, sourceID string) (*SyncSink, error) {
	existing, err := lister.ListSinceForSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list existing documents for source %s: %w", sourceID, err)
	}

	return &SyncSink{
		writer:   writer,
		sourceID: sourceID,
		existing: existing,
		stats: &RunStats{
			SourceID:  sourceID,
			StartedAt: time.Now(),
		},
	}, nil
}

// IndexState returns the external-id -> last-modified set the index held
// for this source when the run began. Connectors that implement
// metadata-first incremental sync (spec.md §4.5 steps 1-3) read it to
// left-join the source's metadata listing against the index before
// fetching any full content. Callers must not mutate the returned map.
func (s *SyncSink) IndexState() map[string]time.Time {
	return s.existing
}

// Keep marks an external id as still present at the source without
// rewriting it, so Finish's delete sweep retains it. Used for rows the
// metadata diff classified as unchanged, which are never re-fetched.
func (s *SyncSink) Keep(externalID string) {
	s.stats.Seen++
	s.keepIDs = append(s.keepIDs, externalID)
}

// Put upserts doc if it is new or has changed since the last sync, and
// always records its external id as seen so Finish's delete sweep
// doesn't remove it.
func (s *SyncSink) Put(ctx context.Context, doc *store.Document) error {
	doc.SourceID = s.sourceID
	s.stats.Seen++
	s.keepIDs = append(s.keepIDs, doc.ExternalID)

	if last, ok := s.existing[doc.ExternalID]; ok && !doc.LastModified.After(last) {
		return nil // unchanged since last sync
	}

	created, err := s.writer.Upsert(ctx, doc)
	if err != nil {
		s.stats.record(fmt.Errorf("upsert %s: %w", doc.ExternalID, err))
		return err
	}

	s.stats.Upserted++
	if created {
		s.stats.Created++
	}
	return nil
}

// Finish runs the delete sweep, removing any of the source's previously
// known documents whose external id was not seen during this run, and
// returns the completed stats.
func (s *SyncSink) Finish(ctx context.Context) (*RunStats, error) {
	removed, err := s.writer.DeleteBySource(ctx, s.sourceID, s.keepIDs)
	if err != nil {
		return s.stats, fmt.Errorf("delete sweep for source %s: %w", s.sourceID, err)
	}
	s.stats.Deleted = removed
	s.stats.FinishedAt = time.Now()
	return s.stats, nil
}
