package frpei

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// breakerSettings mirrors gobreaker's defaults but trips after 5
// consecutive failures and allows 3 half-open probes, per spec.md §4.10's
// "circuit breaker with half-open retries."
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// BreakingProvider wraps a Provider in a circuit breaker, so a
// persistently failing provider stops receiving fan-out calls for a
// cooldown window instead of timing out every request.
type BreakingProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[[]RawCandidate]
}

// NewBreakingProvider wraps p in its own named breaker.
func NewBreakingProvider(p Provider) *BreakingProvider {
	return &BreakingProvider{
		inner:   p,
		breaker: gobreaker.NewCircuitBreaker[[]RawCandidate](breakerSettings(p.Name())),
	}
}

func (b *BreakingProvider) Name() string   { return b.inner.Name() }
func (b *BreakingProvider) TrustTier() int { return b.inner.TrustTier() }

// Fetch runs the call through the breaker. gobreaker.ErrOpenState and
// gobreaker.ErrTooManyRequests surface as ordinary errors the caller
// records as provider status "breaker_open".
func (b *BreakingProvider) Fetch(ctx context.Context, query string, deadline time.Time) ([]RawCandidate, error) {
	return b.breaker.Execute(func() ([]RawCandidate, error) {
		return b.inner.Fetch(ctx, query, deadline)
	})
}

// IsBreakerOpen reports whether err originated from an open breaker
// rejecting the call outright, as opposed to the wrapped provider itself
// failing.
func IsBreakerOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// State returns the breaker's current state name ("closed", "open",
// "half-open"), for the /frpei/status admin endpoint.
func (b *BreakingProvider) State() string {
	return b.breaker.State().String()
}
