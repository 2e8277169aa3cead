// Package relay manages long-lived websocket connections to a configured
// set of Nostr relays: NIP-11 policy discovery, per-relay rate limiting,
// health-weighted selection, and circuit breaking on repeated failure.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits captures the relay-advertised NIP-11 limitation document fields
// this pool cares about.
type Limits struct {
	MaxLimit          int // max events returned per REQ; 0 means unknown
	MaxMessageLength  int
	MaxSubscriptions  int
}

// DefaultLimits is used when a relay's NIP-11 document omits limits, or
// discovery fails outright.
func DefaultLimits() Limits {
	return Limits{MaxLimit: 500, MaxMessageLength: 65536, MaxSubscriptions: 20}
}

// Policy is the subset of a relay's NIP-11 document the pool consults.
type Policy struct {
	Name          string
	Description   string
	SupportedNIPs []int
	Limits        Limits
	FetchedAt     time.Time
}

// Health tracks a relay's rolling operational state. The pool is the sole
// mutator; everything else observes it through Select/Stats.
type Health struct {
	AvgLatency         time.Duration
	SuccessRate        float64 // exponentially-weighted, 0..1
	ConsecutiveFailures int
	LastOK             time.Time
	CircuitOpenUntil   time.Time
}

// Open reports whether the relay's circuit breaker is currently tripped.
func (h Health) Open(now time.Time) bool {
	return now.Before(h.CircuitOpenUntil)
}

// Filter mirrors a Nostr REQ filter (NIP-01): kinds/authors/tags/since/until.
type Filter struct {
	Kinds   []int
	Authors []string
	Tags    map[string][]string // "#e" -> [...], "#p" -> [...]
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Event is the minimal Nostr event shape the pool and its consumers pass
// around; C4 normalization consumes this.
type Event struct {
	ID        string
	PubKey    string
	CreatedAt time.Time
	Kind      int
	Tags      [][]string
	Content   string
	Sig       string
	RelayURL  string // which relay delivered this copy, for dedup/debug
}

// wireEvent mirrors the NIP-01 JSON event shape, where created_at is a unix
// timestamp, for decoding off the wire before conversion to Event.
type wireEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// UnmarshalJSON decodes the wire representation of a Nostr event, where
// created_at is a unix timestamp rather than RFC3339.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	e.PubKey = w.PubKey
	e.CreatedAt = time.Unix(w.CreatedAt, 0)
	e.Kind = w.Kind
	e.Tags = w.Tags
	e.Content = w.Content
	e.Sig = w.Sig
	return nil
}

// relayState is the pool's internal per-relay bookkeeping.
type relayState struct {
	url     string
	mu      sync.Mutex
	policy  Policy
	health  Health
	limiter *rate.Limiter
	conn    Conn // nil until first use; lazily dialed
}

// Conn abstracts the websocket transport so the pool can be tested without
// a live socket. *wsConn implements it over gorilla/websocket.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// cooldownBase and cooldownCap bound the circuit breaker's exponential
// backoff: base 2s, cap 10m, per spec.
const (
	cooldownBase = 2 * time.Second
	cooldownCap  = 10 * time.Minute
	failureThreshold = 3
)

// cooldownFor returns the circuit-open duration for the Nth consecutive
// failure (1-indexed), doubling from cooldownBase and clamped to cooldownCap.
func cooldownFor(consecutiveFailures int) time.Duration {
	if consecutiveFailures < failureThreshold {
		return 0
	}
	shift := consecutiveFailures - failureThreshold
	if shift > 20 { // guard against overflow; cap dominates well before this
		shift = 20
	}
	d := cooldownBase << uint(shift)
	if d > cooldownCap || d <= 0 {
		return cooldownCap
	}
	return d
}
