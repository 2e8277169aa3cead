package connector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/federails/corequery/internal/nostrnorm"
	"github.com/federails/corequery/internal/relay"
)

// IngestionStrategy names one of the three relay-filter compilation
// strategies spec.md §4.5 lists for the Nostr connector.
type IngestionStrategy string

const (
	StrategyRecentQuality      IngestionStrategy = "recent_quality"
	StrategyPopularContent     IngestionStrategy = "popular_content"
	StrategyComprehensiveCrawl IngestionStrategy = "comprehensive_crawl"
)

// compileFilter turns a strategy into the relay.Filter(s) it queries.
// recent_quality favors high-priority kinds from the last day;
// popular_content widens the kind set over a week; comprehensive_crawl
// drops the time bound entirely and pages through everything searchable.
func compileFilter(strategy IngestionStrategy, kinds []int) relay.Filter {
	now := time.Now()
	switch strategy {
	case StrategyPopularContent:
		return relay.Filter{Kinds: kinds, Since: now.Add(-7 * 24 * time.Hour), Limit: 500}
	case StrategyComprehensiveCrawl:
		return relay.Filter{Kinds: kinds, Limit: 5000}
	default: // recent_quality
		return relay.Filter{Kinds: kinds, Since: now.Add(-24 * time.Hour), Limit: 200}
	}
}

// RelayQuerier is the subset of *relay.Pool the Nostr connector drives;
// an interface so it can be tested without a live relay pool.
type RelayQuerier interface {
	AddRelay(ctx context.Context, url string) error
	Query(ctx context.Context, filter relay.Filter) (<-chan relay.Event, error)
}

// NostrConnector drives the relay pool with a compiled filter, then runs
// every event through the classify/extract/spam-filter pipeline before
// handing surviving documents to the sink. Records per-kind counters.
type NostrConnector struct {
	pool RelayQuerier

	mu       sync.Mutex
	stopped  bool
	kindSeen map[int]int
}

// NewNostrConnector wires a connector to an existing relay pool.
func NewNostrConnector(pool RelayQuerier) *NostrConnector {
	return &NostrConnector{pool: pool, kindSeen: make(map[int]int)}
}

// ValidateConfig requires at least one relay URL and a recognized strategy.
func (c *NostrConnector) ValidateConfig(cfg map[string]string) error {
	if strings.TrimSpace(cfg["relays"]) == "" {
		return fmt.Errorf("nostr connector: relays is required (comma-separated URLs)")
	}
	switch IngestionStrategy(cfg["strategy"]) {
	case "", StrategyRecentQuality, StrategyPopularContent, StrategyComprehensiveCrawl:
	default:
		return fmt.Errorf("nostr connector: unknown strategy %q", cfg["strategy"])
	}
	return nil
}

// Run discovers the configured relays, compiles a filter from the
// configured strategy and kinds, and streams every matching event
// through the normalization pipeline before upserting survivors.
func (c *NostrConnector) Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error) {
	stats := &RunStats{SourceID: cfg["source_id"], StartedAt: time.Now()}

	relays := splitCSV(cfg["relays"])
	for _, url := range relays {
		if err := c.pool.AddRelay(ctx, url); err != nil {
			stats.record(fmt.Errorf("add relay %s: %w", url, err))
		}
	}

	strategy := IngestionStrategy(cfg["strategy"])
	if strategy == "" {
		strategy = StrategyRecentQuality
	}
	kinds := parseKinds(cfg["kinds"])
	filter := compileFilter(strategy, kinds)

	events, err := c.pool.Query(ctx, filter)
	if err != nil {
		return stats, fmt.Errorf("query relays: %w", err)
	}

	pipeline := nostrnorm.NewPipeline(nostrnorm.DefaultSpamFilterConfig())

	for ev := range events {
		c.mu.Lock()
		stopped := c.stopped
		if !stopped {
			c.kindSeen[ev.Kind]++
		}
		c.mu.Unlock()
		if stopped {
			break
		}

		stats.Seen++

		result := pipeline.Process(ev)
		if result.Dropped {
			continue
		}

		doc := nostrnorm.ToDocument(result, stats.SourceID)
		if err := sink.Put(ctx, doc); err != nil {
			stats.record(err)
			continue
		}
		stats.Upserted++
	}

	stats.FinishedAt = time.Now()
	return stats, nil
}

// Stop halts an in-flight Run once its current event is processed.
func (c *NostrConnector) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}

// KindCounts returns a snapshot of per-kind event counts seen so far.
func (c *NostrConnector) KindCounts() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]int, len(c.kindSeen))
	for k, v := range c.kindSeen {
		out[k] = v
	}
	return out
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseKinds(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
