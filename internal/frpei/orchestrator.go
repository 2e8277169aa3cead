package frpei

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultGlobalTimeout = 5 * time.Second
	defaultLimit         = 10
)

// Orchestrator runs the Plan -> Canonicalize -> Deduplicate -> Enrich ->
// Rank -> Return pipeline spec.md §4.10 describes.
type Orchestrator struct {
	providers map[string]Provider
	cache     *ResultCache
	weights   Weights
	logger    *slog.Logger
}

// NewOrchestrator wires a provider set (already breaker-wrapped by the
// caller where desired) plus an optional result cache.
func NewOrchestrator(providers []Provider, cache *ResultCache, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Orchestrator{providers: byName, cache: cache, weights: DefaultWeights(), logger: logger}
}

// ProviderNames returns every registered provider's name and trust
// tier, for the /frpei/status admin endpoint.
func (o *Orchestrator) ProviderNames() map[string]int {
	out := make(map[string]int, len(o.providers))
	for name, p := range o.providers {
		out[name] = p.TrustTier()
	}
	return out
}

// Weights returns the orchestrator's configured rank weights.
func (o *Orchestrator) Weights() Weights {
	return o.weights
}

// activeProviders resolves the providers to fan out to: the request's
// explicit list if given, otherwise every registered provider.
func (o *Orchestrator) activeProviders(req Request) []Provider {
	if len(req.Providers) == 0 {
		out := make([]Provider, 0, len(o.providers))
		for _, p := range o.providers {
			out = append(out, p)
		}
		return out
	}
	out := make([]Provider, 0, len(req.Providers))
	for _, name := range req.Providers {
		if p, ok := o.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

type fetchResult struct {
	provider Provider
	stat     ProviderStat
	raw      []RawCandidate
}

// Retrieve runs the full pipeline. It fails only if every provider fails
// or is excluded; a partial success still returns.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (*Response, error) {
	req = applyDefaults(req)

	if o.cache != nil {
		key := Key(req)
		if cached, ok := o.cache.Get(key); ok {
			ranked := Rank(append([]Candidate{}, cached...), o.weights, req.Explain)
			return &Response{Results: truncate(ranked, req.Limit), Cached: true}, nil
		}
	}

	providers := o.activeProviders(req)
	if len(providers) == 0 {
		return nil, fmt.Errorf("frpei: no active providers resolved from request")
	}

	deadline := time.Now().Add(time.Duration(req.TimeoutMs) * time.Millisecond)
	fetchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	results := o.fanOut(fetchCtx, providers, req.Query, deadline)

	stats := make(map[string]ProviderStat, len(results))
	var rawCandidates []RawCandidate
	successes := 0
	trustTier := make(map[string]int, len(providers))
	for _, p := range providers {
		trustTier[p.Name()] = p.TrustTier()
	}
	for _, r := range results {
		stats[r.provider.Name()] = r.stat
		if r.stat.Status == "ok" {
			successes++
			rawCandidates = append(rawCandidates, r.raw...)
		}
	}
	if successes == 0 {
		o.logger.Warn("frpei: all providers failed within deadline", "provider_count", len(providers))
		return nil, fmt.Errorf("frpei: all %d providers failed within deadline", len(providers))
	}

	canonicalized := make([]Candidate, 0, len(rawCandidates))
	for _, raw := range rawCandidates {
		c := Canonicalize(raw)
		c.ProviderTrust = normalizeTrust(trustTier[c.Provider])
		canonicalized = append(canonicalized, Enrich(c))
	}

	deduped := canonicalized
	if req.Dedupe {
		deduped = Deduplicate(canonicalized, trustTier)
	}

	ranked := Rank(deduped, o.weights, req.Explain)

	if o.cache != nil {
		o.cache.Put(Key(req), append([]Candidate{}, ranked...))
	}

	return &Response{
		Results:       truncate(ranked, req.Limit),
		ProviderStats: stats,
		Cached:        false,
	}, nil
}

// fanOut launches one goroutine per provider and collects whatever
// completes before deadline; a slow provider's result is discarded, not
// waited for, matching spec.md's "cancelled and its partial results
// discarded" behavior.
func (o *Orchestrator) fanOut(ctx context.Context, providers []Provider, query string, deadline time.Time) []fetchResult {
	resultCh := make(chan fetchResult, len(providers))
	for _, p := range providers {
		go func(p Provider) {
			start := time.Now()
			raw, err := p.Fetch(ctx, query, deadline)
			latency := time.Since(start).Milliseconds()
			switch {
			case err == nil:
				resultCh <- fetchResult{provider: p, stat: ProviderStat{Status: "ok", CandidateCount: len(raw), LatencyMs: latency}, raw: raw}
			case IsBreakerOpen(err):
				resultCh <- fetchResult{provider: p, stat: ProviderStat{Status: "breaker_open", LatencyMs: latency, Error: err.Error()}}
			case ctx.Err() != nil:
				resultCh <- fetchResult{provider: p, stat: ProviderStat{Status: "timeout", LatencyMs: latency, Error: err.Error()}}
			default:
				resultCh <- fetchResult{provider: p, stat: ProviderStat{Status: "error", LatencyMs: latency, Error: err.Error()}}
			}
		}(p)
	}

	// Every goroutine above sends to resultCh exactly once, win or lose,
	// so collecting len(providers) results never blocks past deadline as
	// long as each Provider.Fetch honors ctx the way the interface
	// contract requires.
	out := make([]fetchResult, 0, len(providers))
	for i := 0; i < len(providers); i++ {
		out = append(out, <-resultCh)
	}
	return out
}

func applyDefaults(req Request) Request {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.TimeoutMs <= 0 {
		req.TimeoutMs = int(defaultGlobalTimeout.Milliseconds())
	}
	return req
}

func truncate(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 || limit >= len(candidates) {
		return candidates
	}
	return candidates[:limit]
}

func normalizeTrust(tier int) float64 {
	if tier <= 0 {
		return 0
	}
	if tier > 10 {
		tier = 10
	}
	return float64(tier) / 10.0
}
