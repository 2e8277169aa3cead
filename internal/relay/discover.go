package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// nip11Document is the subset of the NIP-11 relay information document
// this package parses.
type nip11Document struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	SupportedNIPs []int  `json:"supported_nips"`
	Limitation    struct {
		MaxLimit         int `json:"max_limit"`
		MaxMessageLength int `json:"max_message_length"`
		MaxSubscriptions int `json:"max_subscriptions"`
	} `json:"limitation"`
}

// Discoverer fetches and memoizes relay NIP-11 policies.
type Discoverer struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]Policy
}

// NewDiscoverer creates a Discoverer with the given HTTP timeout.
func NewDiscoverer(timeout time.Duration) *Discoverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discoverer{
		client: &http.Client{Timeout: timeout},
		cache:  make(map[string]Policy),
	}
}

// Discover fetches a relay's NIP-11 document via HTTP GET with an
// Accept: application/nostr+json header, memoizing the result by URL.
// A fresh cache entry is served without a network round trip.
func (d *Discoverer) Discover(ctx context.Context, relayURL string) (Policy, error) {
	d.mu.Lock()
	if p, ok := d.cache[relayURL]; ok && time.Since(p.FetchedAt) < time.Hour {
		d.mu.Unlock()
		return p, nil
	}
	d.mu.Unlock()

	httpURL := toHTTPURL(relayURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return Policy{}, fmt.Errorf("build NIP-11 request: %w", err)
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return d.fallback(relayURL), fmt.Errorf("NIP-11 discovery: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return d.fallback(relayURL), fmt.Errorf("NIP-11 discovery: unexpected status %d", resp.StatusCode)
	}

	var doc nip11Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return d.fallback(relayURL), fmt.Errorf("decode NIP-11 document: %w", err)
	}

	policy := Policy{
		Name:          doc.Name,
		Description:   doc.Description,
		SupportedNIPs: doc.SupportedNIPs,
		Limits: Limits{
			MaxLimit:         orDefault(doc.Limitation.MaxLimit, DefaultLimits().MaxLimit),
			MaxMessageLength: orDefault(doc.Limitation.MaxMessageLength, DefaultLimits().MaxMessageLength),
			MaxSubscriptions: orDefault(doc.Limitation.MaxSubscriptions, DefaultLimits().MaxSubscriptions),
		},
		FetchedAt: time.Now(),
	}

	d.mu.Lock()
	d.cache[relayURL] = policy
	d.mu.Unlock()

	return policy, nil
}

// fallback returns the default policy, still memoized so a persistently
// unreachable relay doesn't retry discovery on every Discover call.
func (d *Discoverer) fallback(relayURL string) Policy {
	p := Policy{Limits: DefaultLimits(), FetchedAt: time.Now()}
	d.mu.Lock()
	d.cache[relayURL] = p
	d.mu.Unlock()
	return p
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// toHTTPURL rewrites a wss://relay.example/ websocket URL into the https://
// URL NIP-11 discovery is served from.
func toHTTPURL(relayURL string) string {
	switch {
	case strings.HasPrefix(relayURL, "wss://"):
		return "https://" + strings.TrimPrefix(relayURL, "wss://")
	case strings.HasPrefix(relayURL, "ws://"):
		return "http://" + strings.TrimPrefix(relayURL, "ws://")
	default:
		return relayURL
	}
}
