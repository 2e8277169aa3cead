// Package plugin runs the ordered, non-fatal score-adjustment pipeline
// spec.md §4.9 describes, plus the WoT (web-of-trust) plugin it names as
// the reference implementation.
package plugin

import (
	"context"

	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

// ScoreModifier is one stage of the pipeline: pure with respect to
// document/context, reading but never mutating core state.
type ScoreModifier interface {
	Name() string
	Apply(ctx context.Context, doc *store.Document, userCtx search.UserContext, baseScore float64) (float64, error)
}

// BatchPrefetcher is an optional capability a ScoreModifier can also
// implement, warming caches for a batch of candidate ids before Apply is
// called per-document.
type BatchPrefetcher interface {
	Prefetch(ctx context.Context, candidateIDs []string, userCtx search.UserContext)
}
