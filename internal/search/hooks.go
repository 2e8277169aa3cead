package search

import (
	"context"

	"github.com/federails/corequery/internal/store"
)

// QueryExpander supplies extra lexical terms for a query from the
// ontology/dictionary snapshot. The returned terms are ORed into the
// lexical query only; the vector path always embeds the raw query. An
// empty ontology returns no terms, so expansion degrades to identity.
type QueryExpander interface {
	ExpandTerms(ctx context.Context, query string) []string
}

// TriggerApplier applies Ontology trigger actions (doc-type boost,
// term-injection adjustments) to a fused score. It is invoked once per
// hydrated result between fusion and the plugin pipeline, and must be
// safe to call concurrently. The returned boost is the cumulative
// adjustment made, for explain-mode reporting.
type TriggerApplier interface {
	Apply(ctx context.Context, query string, doc *store.Document, score float64) (adjusted float64, boost float64)
}

// PluginPipeline runs the ordered, non-fatal plugin chain described in
// spec.md 4.9: `(document_candidate, request_context, base_score) ->
// adjusted_score`. A failing plugin logs and leaves the score unchanged;
// PluginPipeline implementations must absorb per-plugin errors themselves
// so Engine never sees them.
type PluginPipeline interface {
	Apply(ctx context.Context, doc *store.Document, userCtx UserContext, baseScore float64) (adjusted float64)
}
