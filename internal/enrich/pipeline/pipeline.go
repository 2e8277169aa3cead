// Package pipeline runs the full C6 enrichment sequence over a document,
// combining internal/enrich's pure tagging/NER/metadata functions with
// persistence of the resulting entity_relationships set unions plus
// enrichment status. Split from internal/enrich so that leaf consumers of
// the pure enrichment functions (e.g. internal/frpei) don't pull in the
// store package.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/federails/corequery/internal/enrich"
	"github.com/federails/corequery/internal/store"
)

// Result is the full output of enriching one document.
type Result struct {
	DocumentID  string
	Tags        []string
	Entities    []enrich.Entity
	Metadata    enrich.Metadata
	Version     int
	ProcessedAt time.Time
}

// Pipeline runs the full C6 enrichment sequence for one document: tagging
// (TF-IDF + RAKE), topic classification, NER, metadata, and persistence
// of the resulting entity_relationships set unions plus enrichment
// status, enabling an idempotent (re)process on a later version bump.
type Pipeline struct {
	tagger      *enrich.TFIDFTagger
	rake        *enrich.RAKEExtractor
	statusStore store.EnrichmentStore
}

// NewPipeline creates a pipeline backed by the given IDF index and
// relationship/status store.
func NewPipeline(idx *enrich.IDFIndex, statusStore store.EnrichmentStore) *Pipeline {
	return &Pipeline{
		tagger:      enrich.NewTFIDFTagger(idx, 8),
		rake:        enrich.NewRAKEExtractor(5),
		statusStore: statusStore,
	}
}

// Process enriches doc's content and persists relationship/status rows.
// version identifies the content revision being processed, so a later
// call with the same version is a safe no-op from the caller's side
// (status lookup via AlreadyProcessed) and a higher version reprocesses.
func (p *Pipeline) Process(ctx context.Context, doc *store.Document, version int) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("enrich: nil document")
	}

	tfidfTags := p.tagger.Tag(doc.Content)
	phrases := p.rake.Phrases(doc.Content)
	topic := enrich.ClassifyTopic(doc.Content)

	tags := dedupeAppend(tfidfTags, phrases)
	tags = dedupeAppend(tags, []string{topic})

	entities := enrich.ExtractEntities(doc.Content)

	author := doc.Attributes["author"]
	language := doc.Attributes["language"]
	metadata := enrich.BuildMetadata(doc.Content, author, language)

	result := &Result{
		DocumentID: doc.ID,
		Tags:       tags,
		Entities:   entities,
		Metadata:   metadata,
		Version:    version,
	}

	if p.statusStore != nil {
		for _, e := range entities {
			if err := p.statusStore.UpsertEntityRelationship(ctx, string(e.Type), e.Normalized, doc.ID); err != nil {
				return result, fmt.Errorf("upsert entity relationship: %w", err)
			}
		}
		if err := p.statusStore.SetEnrichmentStatus(ctx, doc.ID, "done", version); err != nil {
			return result, fmt.Errorf("set enrichment status: %w", err)
		}
	}

	return result, nil
}

// AlreadyProcessed reports whether doc has been enriched at version or
// later, letting a caller skip redundant reprocessing.
func (p *Pipeline) AlreadyProcessed(ctx context.Context, documentID string, version int) (bool, error) {
	if p.statusStore == nil {
		return false, nil
	}
	status, err := p.statusStore.GetEnrichmentStatus(ctx, documentID)
	if err != nil {
		return false, err
	}
	return status != nil && status.Status == "done" && status.Version >= version, nil
}

func dedupeAppend(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range base {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
