package frpei

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate_CollapsesByCanonicalURLKeepingHigherTrust(t *testing.T) {
	trust := map[string]int{"local": 10, "external": 3}
	candidates := []Candidate{
		{Provider: "external", SourceProviders: []string{"external"}, CanonicalURL: "https://example.com/a", Title: "From external", Relevance: 0.4},
		{Provider: "local", SourceProviders: []string{"local"}, CanonicalURL: "https://example.com/a", Title: "From local", Relevance: 0.9},
	}

	out := Deduplicate(candidates, trust)
	require.Len(t, out, 1)
	assert.Equal(t, "local", out[0].Provider)
	assert.Equal(t, "From local", out[0].Title)
	assert.Equal(t, 0.9, out[0].Relevance)
	assert.ElementsMatch(t, []string{"external", "local"}, out[0].SourceProviders)
}

func TestDeduplicate_LeavesDistinctURLsSeparate(t *testing.T) {
	candidates := []Candidate{
		{Provider: "local", CanonicalURL: "https://example.com/a"},
		{Provider: "local", CanonicalURL: "https://example.com/b"},
	}
	out := Deduplicate(candidates, map[string]int{"local": 1})
	assert.Len(t, out, 2)
}
