//go:build ignore

// Package main generates a synthetic document corpus for benchmarking the
// index store and hybrid search engine, without running a live connector
// against real Nostr relays, web sites, or podcast feeds.
//
// Usage: go run scripts/generate-test-corpus.go -docs 1000 -output testdata/bench
//
// Each generated file is a JSON array of store.Document-shaped records for
// one document_type (nostr:note, docs:api, podcast:episode, sql:kb), ready
// to be read and Upsert-ed directly by a benchmark harness.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numDocs   = flag.Int("docs", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// document mirrors internal/store.Document's JSON shape closely enough for
// a benchmark harness to decode and Upsert without importing internal/store
// from a throwaway script.
type document struct {
	ID               string            `json:"id"`
	ExternalID       string            `json:"external_id,omitempty"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	URL              string            `json:"url,omitempty"`
	DocumentType     string            `json:"document_type"`
	CreatedAt        time.Time         `json:"created_at"`
	LastModified     time.Time         `json:"last_modified"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	PermissionGroups []string          `json:"permission_groups,omitempty"`
	QualityScore     float64           `json:"quality_score"`
	Tags             []string          `json:"tags,omitempty"`
}

var (
	topics = []string{
		"bitcoin", "lightning", "privacy", "nostr relays", "self-hosting",
		"open source", "zero-knowledge proofs", "decentralized identity",
		"federated search", "web of trust", "censorship resistance",
		"peer to peer", "encryption", "key management", "content addressing",
	}
	verbs = []string{
		"explains", "compares", "announces", "questions", "summarizes",
		"reviews", "criticizes", "proposes", "documents", "benchmarks",
	}
	authors = []string{
		"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi",
	}
	podcastShows = []string{
		"The Sovereign Stack", "Relay Chatter", "Keys & Custody", "Block by Block",
	}
	kbCategories = []string{"runbook", "faq", "postmortem", "howto", "reference"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	buckets := map[string][]document{
		"nostr_notes":      nil,
		"docs_api":         nil,
		"podcast_episodes": nil,
		"sql_kb":           nil,
	}

	perBucket := *numDocs / len(buckets)
	for i := 0; i < perBucket; i++ {
		buckets["nostr_notes"] = append(buckets["nostr_notes"], genNostrNote(rng, i))
		buckets["docs_api"] = append(buckets["docs_api"], genAPIDoc(rng, i))
		buckets["podcast_episodes"] = append(buckets["podcast_episodes"], genPodcastEpisode(rng, i))
		buckets["sql_kb"] = append(buckets["sql_kb"], genKBArticle(rng, i))
	}

	generated := 0
	for name, docs := range buckets {
		path := filepath.Join(*outputDir, name+".json")
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal %s: %v\n", name, err)
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			continue
		}
		generated += len(docs)
	}

	fmt.Printf("Generated %d documents across %d files in %s\n", generated, len(buckets), *outputDir)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func sentence(rng *rand.Rand, minTopics, maxTopics int) string {
	n := minTopics + rng.Intn(maxTopics-minTopics+1)
	s := fmt.Sprintf("%s %s", pick(rng, authors), pick(rng, verbs))
	for i := 0; i < n; i++ {
		s += " " + pick(rng, topics)
	}
	return s + "."
}

func genNostrNote(rng *rand.Rand, i int) document {
	eventID := fmt.Sprintf("evt%08x", rng.Uint32())
	pubkey := fmt.Sprintf("pub%08x", rng.Uint32())
	content := sentence(rng, 2, 5)
	created := time.Now().Add(-time.Duration(rng.Intn(90*24)) * time.Hour)
	return document{
		ID:           fmt.Sprintf("nostr-%d", i),
		ExternalID:   eventID,
		Title:        content[:min(60, len(content))],
		Content:      content,
		DocumentType: "nostr:note",
		CreatedAt:    created,
		LastModified: created,
		Attributes: map[string]string{
			"event_id": eventID,
			"pubkey":   pubkey,
			"kind":     "1",
		},
		QualityScore: 0.5 + rng.Float64()*0.5,
		Tags:         []string{pick(rng, topics)},
	}
}

func genAPIDoc(rng *rand.Rand, i int) document {
	topic := pick(rng, topics)
	created := time.Now().Add(-time.Duration(rng.Intn(365*24)) * time.Hour)
	return document{
		ID:           fmt.Sprintf("docs-%d", i),
		ExternalID:   fmt.Sprintf("/docs/%s/%d", topic, i),
		Title:        fmt.Sprintf("%s API reference", topic),
		Content:      sentence(rng, 3, 6) + " " + sentence(rng, 2, 4),
		URL:          fmt.Sprintf("https://docs.example.org/%s/%d", topic, i),
		DocumentType: "docs:api",
		CreatedAt:    created,
		LastModified: created,
		QualityScore: 0.6 + rng.Float64()*0.4,
		Tags:         []string{topic, "reference"},
	}
}

func genPodcastEpisode(rng *rand.Rand, i int) document {
	show := pick(rng, podcastShows)
	created := time.Now().Add(-time.Duration(rng.Intn(200*24)) * time.Hour)
	return document{
		ID:           fmt.Sprintf("podcast-%d", i),
		ExternalID:   fmt.Sprintf("%s-ep%d", show, i),
		Title:        fmt.Sprintf("%s — episode %d: %s", show, i, pick(rng, topics)),
		Content:      sentence(rng, 4, 8) + " " + sentence(rng, 4, 8),
		URL:          fmt.Sprintf("https://feeds.example.org/%s/ep%d.mp3", show, i),
		DocumentType: "podcast:episode",
		CreatedAt:    created,
		LastModified: created,
		Attributes: map[string]string{
			"show": show,
		},
		QualityScore: 0.4 + rng.Float64()*0.5,
		Tags:         []string{show},
	}
}

func genKBArticle(rng *rand.Rand, i int) document {
	category := pick(rng, kbCategories)
	created := time.Now().Add(-time.Duration(rng.Intn(500*24)) * time.Hour)
	groups := []string{}
	if rng.Intn(4) == 0 {
		groups = []string{"internal"}
	}
	return document{
		ID:               fmt.Sprintf("kb-%d", i),
		ExternalID:       fmt.Sprintf("kb-row-%d", i),
		Title:            fmt.Sprintf("%s: %s", category, pick(rng, topics)),
		Content:          sentence(rng, 3, 7),
		DocumentType:     "sql:kb",
		CreatedAt:        created,
		LastModified:     created,
		PermissionGroups: groups,
		QualityScore:     0.3 + rng.Float64()*0.6,
		Tags:             []string{category},
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
