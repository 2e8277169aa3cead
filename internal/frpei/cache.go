package frpei

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache is a read-through cache keyed by (normalized query,
// providers, filters). A hit bypasses provider fan-out but the caller
// still runs Rank over the cached candidates, so feedback-driven weight
// changes apply without needing a fresh fetch.
type ResultCache struct {
	entries *expirable.LRU[string, []Candidate]
}

// NewResultCache builds a cache with the given capacity and TTL.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	return &ResultCache{entries: expirable.NewLRU[string, []Candidate](capacity, nil, ttl)}
}

// Key derives a stable cache key from a request's query, provider set,
// and type filters.
func Key(req Request) string {
	providers := append([]string{}, req.Providers...)
	sort.Strings(providers)
	types := append([]string{}, req.Types...)
	sort.Strings(types)
	return strings.ToLower(strings.TrimSpace(req.Query)) + "|" + strings.Join(providers, ",") + "|" + strings.Join(types, ",")
}

func (c *ResultCache) Get(key string) ([]Candidate, bool) {
	return c.entries.Get(key)
}

func (c *ResultCache) Put(key string, candidates []Candidate) {
	c.entries.Add(key, candidates)
}
