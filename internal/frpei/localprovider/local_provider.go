// Package localprovider wraps the hybrid search.Engine as a frpei.Provider.
// Split out from internal/frpei so that frpei itself doesn't need to
// import internal/search (which imports internal/store, which imports
// internal/frpei for its FRPEIStore persistence methods).
package localprovider

import (
	"context"
	"time"

	"github.com/federails/corequery/internal/frpei"
	"github.com/federails/corequery/internal/search"
)

// Provider wraps the hybrid Search Engine as one of FRPEI's fan-out
// providers, per spec.md §4.10's "local Search Engine" example and §1's
// federated flow note that C8 is itself one of C10's providers.
type Provider struct {
	engine    *search.Engine
	trustTier int
}

// New wraps engine with the given trust tier (higher wins dedup
// collisions against lower-trust external providers).
func New(engine *search.Engine, trustTier int) *Provider {
	return &Provider{engine: engine, trustTier: trustTier}
}

func (p *Provider) Name() string   { return "local" }
func (p *Provider) TrustTier() int { return p.trustTier }

// Fetch runs a hybrid search with a per-request timeout bound by
// deadline and maps results into RawCandidates.
func (p *Provider) Fetch(ctx context.Context, query string, deadline time.Time) ([]frpei.RawCandidate, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	resp, err := p.engine.Search(ctx, search.SearchRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}

	out := make([]frpei.RawCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, frpei.RawCandidate{
			Provider:    p.Name(),
			URL:         r.Document.URL,
			Title:       r.Document.Title,
			Snippet:     snippet(r.Document.Content, 240),
			ContentType: r.Document.DocumentType,
			Relevance:   normalizedScore(r.Score),
			Popularity:  r.Document.QualityScore,
		})
	}
	return out, nil
}

func snippet(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}

// normalizedScore clamps an engine score (unbounded after fusion/plugin
// adjustments) into FRPEI's 0..1 relevance signal range.
func normalizedScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
