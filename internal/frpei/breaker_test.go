package frpei

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakingProvider_PassesThroughSuccess(t *testing.T) {
	inner := &fakeProvider{name: "p", tier: 5, results: []RawCandidate{{Provider: "p", URL: "https://example.com/a"}}}
	b := NewBreakingProvider(inner)

	got, err := b.Fetch(context.Background(), "q", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "p", b.Name())
	assert.Equal(t, 5, b.TrustTier())
	assert.Equal(t, "closed", b.State())
}

func TestBreakingProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "flaky", tier: 5, err: errors.New("upstream down")}
	b := NewBreakingProvider(inner)

	for i := 0; i < 5; i++ {
		_, err := b.Fetch(context.Background(), "q", time.Now().Add(time.Second))
		require.Error(t, err)
		assert.False(t, IsBreakerOpen(err))
	}

	// Sixth call is rejected by the open breaker without reaching the
	// provider at all.
	_, err := b.Fetch(context.Background(), "q", time.Now().Add(time.Second))
	require.Error(t, err)
	assert.True(t, IsBreakerOpen(err))
	assert.Equal(t, "open", b.State())
}

func TestBreakingProvider_StaysClosedBelowThreshold(t *testing.T) {
	inner := &fakeProvider{name: "mostly-ok", tier: 5, err: errors.New("blip")}
	b := NewBreakingProvider(inner)

	for i := 0; i < 4; i++ {
		_, _ = b.Fetch(context.Background(), "q", time.Now().Add(time.Second))
	}
	// A success resets the consecutive-failure count.
	inner.err = nil
	inner.results = []RawCandidate{{Provider: "mostly-ok", URL: "https://example.com/a"}}
	_, err := b.Fetch(context.Background(), "q", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "closed", b.State())
}
