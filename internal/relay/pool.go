package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pool manages the configured set of relay connections: discovery, health
// tracking, rate limiting, and event streaming. The pool is the sole
// mutator of relay health; everything else only reads it through Select.
type Pool struct {
	discoverer *Discoverer
	logger     *slog.Logger

	mu     sync.RWMutex
	relays map[string]*relayState
}

// NewPool creates an empty pool. Relays are added via AddRelay before use.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		discoverer: NewDiscoverer(5 * time.Second),
		logger:     logger.With("component", "relay"),
		relays:     make(map[string]*relayState),
	}
}

// AddRelay registers a relay URL with the pool, discovering its NIP-11
// policy and sizing its token bucket from the discovered limits (default
// 10 rps / burst 50 when discovery fails or omits limits).
func (p *Pool) AddRelay(ctx context.Context, url string) error {
	policy, err := p.discoverer.Discover(ctx, url)
	if err != nil {
		p.logger.Warn("NIP-11 discovery failed, using defaults", "url", url, "error", err)
	}

	rps := float64(policy.Limits.MaxLimit) / 10
	if rps <= 0 || rps > 10 {
		rps = 10
	}

	st := &relayState{
		url:     url,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(rps), 50),
	}

	p.mu.Lock()
	p.relays[url] = st
	p.mu.Unlock()

	return nil
}

// Discover returns a relay's memoized NIP-11 policy, fetching it if this
// is the first call for that URL.
func (p *Pool) Discover(ctx context.Context, url string) (Policy, error) {
	return p.discoverer.Discover(ctx, url)
}

// healthScore weights success rate against inverse latency; relays with an
// open circuit are excluded by the caller before this is consulted.
func healthScore(h Health) float64 {
	latencyPenalty := 0.0
	if h.AvgLatency > 0 {
		latencyPenalty = float64(h.AvgLatency) / float64(time.Second)
	}
	return h.SuccessRate - 0.1*latencyPenalty
}

// Select returns the relays eligible for a filter, ordered by health score
// descending, excluding any with an open circuit breaker.
func (p *Pool) Select(filterKinds []int) []string {
	now := time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	type scored struct {
		url   string
		score float64
	}
	candidates := make([]scored, 0, len(p.relays))
	for url, st := range p.relays {
		st.mu.Lock()
		open := st.health.Open(now)
		score := healthScore(st.health)
		st.mu.Unlock()
		if open {
			continue
		}
		candidates = append(candidates, scored{url: url, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.url
	}
	return out
}

// toWire renders a Filter as the NIP-01 REQ filter object.
func (f Filter) toWire() map[string]any {
	m := map[string]any{}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if !f.Since.IsZero() {
		m["since"] = f.Since.Unix()
	}
	if !f.Until.IsZero() {
		m["until"] = f.Until.Unix()
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	for k, v := range f.Tags {
		m[k] = v
	}
	return m
}

// Query runs filter against the selected relays and returns a channel of
// deduplicated events (by event id, across relays); the channel closes
// once every relay has sent EOSE or the context is cancelled.
func (p *Pool) Query(ctx context.Context, filter Filter) (<-chan Event, error) {
	urls := p.Select(filter.Kinds)
	if len(urls) == 0 {
		out := make(chan Event)
		close(out)
		return out, nil
	}

	out := make(chan Event, 256)
	seen := &sync.Map{}
	var wg sync.WaitGroup

	for _, url := range urls {
		url := url
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.streamOne(ctx, url, filter, out, seen, false)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Subscribe behaves like Query but keeps streaming after EOSE until ctx is
// cancelled, delivering newly published events as they arrive.
func (p *Pool) Subscribe(ctx context.Context, filter Filter) (<-chan Event, error) {
	urls := p.Select(filter.Kinds)
	if len(urls) == 0 {
		out := make(chan Event)
		close(out)
		return out, nil
	}

	out := make(chan Event, 256)
	seen := &sync.Map{}
	var wg sync.WaitGroup

	for _, url := range urls {
		url := url
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.streamOne(ctx, url, filter, out, seen, true)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// streamOne handles a single relay's REQ lifecycle: rate limiting, socket
// dial, message pump, and outcome recording. live keeps the subscription
// open past EOSE instead of closing it.
func (p *Pool) streamOne(ctx context.Context, url string, filter Filter, out chan<- Event, seen *sync.Map, live bool) {
	st := p.state(url)
	if st == nil {
		return
	}

	if err := st.limiter.Wait(ctx); err != nil {
		return
	}

	start := time.Now()
	conn, err := p.connFor(ctx, st)
	if err != nil {
		p.recordOutcome(st, false, 0)
		return
	}

	subID := fmt.Sprintf("sub-%d", time.Now().UnixNano())
	req := []any{"REQ", subID, filter.toWire()}
	if err := conn.WriteJSON(req); err != nil {
		p.recordOutcome(st, false, time.Since(start))
		return
	}

	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			p.recordOutcome(st, false, time.Since(start))
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(msg, &frame); err != nil || len(frame) == 0 {
			continue
		}

		var kind string
		_ = json.Unmarshal(frame[0], &kind)

		switch kind {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				continue
			}
			ev.RelayURL = url
			if _, dup := seen.LoadOrStore(ev.ID, struct{}{}); dup {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case "EOSE":
			p.recordOutcome(st, true, time.Since(start))
			if !live {
				_ = conn.Close()
				return
			}
		case "CLOSED", "NOTICE":
			p.recordOutcome(st, false, time.Since(start))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *Pool) state(url string) *relayState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.relays[url]
}

// connFor lazily dials a relay's socket, reusing it across calls.
func (p *Pool) connFor(ctx context.Context, st *relayState) (Conn, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.conn != nil {
		return st.conn, nil
	}
	conn, err := dial(ctx, st.url)
	if err != nil {
		return nil, err
	}
	st.conn = conn
	return conn, nil
}

// recordOutcome updates a relay's health after an operation completes,
// incrementing consecutive_failures on failure and opening the circuit at
// the failure threshold with exponential cooldown.
func (p *Pool) recordOutcome(st *relayState, ok bool, latency time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	const alpha = 0.2 // EWMA smoothing for success rate and latency
	successValue := 0.0
	if ok {
		successValue = 1.0
		st.health.LastOK = time.Now()
		st.health.ConsecutiveFailures = 0
	} else {
		st.health.ConsecutiveFailures++
	}
	st.health.SuccessRate = st.health.SuccessRate*(1-alpha) + successValue*alpha

	if latency > 0 {
		if st.health.AvgLatency == 0 {
			st.health.AvgLatency = latency
		} else {
			st.health.AvgLatency = time.Duration(float64(st.health.AvgLatency)*(1-alpha) + float64(latency)*alpha)
		}
	}

	if cd := cooldownFor(st.health.ConsecutiveFailures); cd > 0 {
		st.health.CircuitOpenUntil = time.Now().Add(cd)
		p.logger.Warn("relay circuit opened", "url", st.url, "consecutive_failures", st.health.ConsecutiveFailures, "cooldown", cd)
		if st.conn != nil {
			_ = st.conn.Close()
			st.conn = nil
		}
	}
}

// Stats returns a snapshot of every registered relay's current health.
func (p *Pool) Stats() map[string]Health {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]Health, len(p.relays))
	for url, st := range p.relays {
		st.mu.Lock()
		out[url] = st.health
		st.mu.Unlock()
	}
	return out
}

// Close shuts down every relay connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, st := range p.relays {
		st.mu.Lock()
		if st.conn != nil {
			_ = st.conn.Close()
			st.conn = nil
		}
		st.mu.Unlock()
	}
	return nil
}
