// Package frpei implements the federated retrieval, enrichment pipeline
// spec.md §4.10 describes: fan out a query to multiple providers (one of
// which is typically the local hybrid Search Engine), canonicalize and
// deduplicate their candidates, enrich and rank them together, and return
// an explainable, merged result set.
package frpei

import (
	"context"
	"time"
)

// RawCandidate is what a Provider returns before canonicalization.
type RawCandidate struct {
	Provider    string
	URL         string
	Title       string
	Snippet     string
	ContentType string
	Relevance   float64 // provider-reported relevance, 0..1
	Popularity  float64 // provider-reported popularity signal, 0..1
	Raw         map[string]string
}

// Provider fans a query out to one retrieval backend. Fetch must respect
// deadline and return whatever candidates it has if cancelled early.
type Provider interface {
	Name() string
	TrustTier() int // higher wins on dedup collision
	Fetch(ctx context.Context, query string, deadline time.Time) ([]RawCandidate, error)
}

// Candidate is a RawCandidate after canonicalization, deduplication, and
// enrichment, ready for ranking.
type Candidate struct {
	ID              string   `json:"id"`
	Provider        string   `json:"provider"`
	SourceProviders []string `json:"source_providers,omitempty"` // every provider that surfaced this candidate, post-dedup
	CanonicalURL    string   `json:"canonical_url"`
	CanonicalDomain string   `json:"canonical_domain"`
	Title           string   `json:"title"`
	Snippet         string   `json:"snippet"`
	ContentType     string   `json:"content_type,omitempty"`

	Entities []string `json:"entities,omitempty"`
	Topics   []string `json:"topics,omitempty"`

	ProviderTrust float64 `json:"provider_trust"`
	Relevance     float64 `json:"relevance"`
	Freshness     float64 `json:"freshness"`
	Popularity    float64 `json:"popularity"`
	EntityMatch   float64 `json:"entity_match"`
	UserAffinity  float64 `json:"user_affinity"`

	Score float64               `json:"score"`
	Why   []SignalContribution  `json:"why,omitempty"`
}

// SignalContribution is one term of the rank-log explanation for a
// candidate's final score.
type SignalContribution struct {
	Signal       string  `json:"signal"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Request is one /api/frpei/retrieve call.
type Request struct {
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`
	Providers  []string `json:"providers,omitempty"` // empty = defaults
	Types      []string `json:"types,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Expand     bool     `json:"expand,omitempty"`
	Explain    bool     `json:"explain,omitempty"`
	Dedupe     bool     `json:"dedupe,omitempty"`
	TimeoutMs  int      `json:"timeoutMs,omitempty"`
	UserPubkey string   `json:"user_pubkey,omitempty"`
}

// ProviderStat reports one provider's outcome for observability.
type ProviderStat struct {
	Status         string `json:"status"` // "ok", "timeout", "error", "breaker_open"
	CandidateCount int    `json:"candidate_count"`
	LatencyMs      int64  `json:"latency_ms"`
	Error          string `json:"error,omitempty"`
}

// Response is the merged, ranked result of a Retrieve call.
type Response struct {
	Results       []Candidate             `json:"results"`
	ProviderStats map[string]ProviderStat `json:"providerStats,omitempty"`
	Cached        bool                    `json:"cached"`
	Warnings      []string                `json:"warnings,omitempty"`
}

// FeedbackRecord captures a relevance label for future rank tuning.
type FeedbackRecord struct {
	Query       string    `json:"query"`
	CandidateID string    `json:"candidate_id"`
	Label       string    `json:"label"` // "relevant", "irrelevant", "clicked"
	UserPubkey  string    `json:"user_pubkey,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}
