package plugin

import (
	"context"
	"log/slog"

	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

var _ search.PluginPipeline = (*Pipeline)(nil)

// Pipeline runs an ordered list of ScoreModifiers, each applied to the
// previous stage's output. A failing modifier logs and is skipped,
// leaving the score it would have adjusted unchanged — spec.md §4.9's
// non-fatal error handling.
type Pipeline struct {
	modifiers []ScoreModifier
	logger    *slog.Logger
}

// NewPipeline builds a pipeline from an ordered, enabled modifier list.
// The registry that selects and orders modifiers is built at compile
// time (see registry.go); only enable/disable/reorder is configurable.
func NewPipeline(logger *slog.Logger, modifiers ...ScoreModifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{modifiers: modifiers, logger: logger}
}

// Prefetch calls Prefetch on every modifier that implements
// BatchPrefetcher, letting cache-warming happen once per result page
// rather than once per document.
func (p *Pipeline) Prefetch(ctx context.Context, candidateIDs []string, userCtx search.UserContext) {
	for _, m := range p.modifiers {
		if bp, ok := m.(BatchPrefetcher); ok {
			bp.Prefetch(ctx, candidateIDs, userCtx)
		}
	}
}

// Apply runs doc through every modifier in order, accumulating
// adjustments. Implements search.PluginPipeline.
func (p *Pipeline) Apply(ctx context.Context, doc *store.Document, userCtx search.UserContext, baseScore float64) float64 {
	score := baseScore
	for _, m := range p.modifiers {
		adjusted, err := m.Apply(ctx, doc, userCtx, score)
		if err != nil {
			p.logger.Warn("plugin modifier failed, leaving score unchanged", "plugin", m.Name(), "error", err)
			continue
		}
		score = adjusted
	}
	return score
}
