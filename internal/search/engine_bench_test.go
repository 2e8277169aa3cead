package search

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/federails/corequery/internal/store"
)

// =============================================================================
// Search Engine Benchmarks at Scale
// Targets:
// - P50 < 20ms (10K), < 50ms (50K), < 100ms (100K)
// - P95 < 50ms (10K), < 100ms (50K), < 200ms (100K)
// =============================================================================

// BenchmarkEngineSearch_Scale runs search benchmarks at various corpus scales.
func BenchmarkEngineSearch_Scale(b *testing.B) {
	scales := []int{100, 1000, 10000, 50000}

	for _, scale := range scales {
		b.Run(fmt.Sprintf("scale_%d", scale), func(b *testing.B) {
			engine, cleanup := setupScaleBenchmarkEngine(b, scale)
			defer cleanup()

			ctx := context.Background()
			queries := generateBenchQueries(10)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				req := SearchRequest{Query: queries[i%len(queries)], Limit: 20}
				if _, err := engine.Search(ctx, req); err != nil {
					b.Fatalf("search failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkEngineSearch_Parallel tests concurrent search performance.
func BenchmarkEngineSearch_Parallel(b *testing.B) {
	engine, cleanup := setupScaleBenchmarkEngine(b, 10000)
	defer cleanup()

	ctx := context.Background()
	queries := generateBenchQueries(100)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			req := SearchRequest{Query: queries[i%len(queries)], Limit: 20}
			if _, err := engine.Search(ctx, req); err != nil {
				b.Fatalf("search failed: %v", err)
			}
			i++
		}
	})
}

// BenchmarkEngineIndex_Throughput benchmarks indexing throughput.
func BenchmarkEngineIndex_Throughput(b *testing.B) {
	docCounts := []int{10, 50, 100, 500}

	for _, count := range docCounts {
		b.Run(fmt.Sprintf("docs_%d", count), func(b *testing.B) {
			engine, cleanup := setupScaleBenchmarkEngine(b, 0) // start empty
			defer cleanup()

			docs := generateBenchDocuments(count)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if err := engine.Index(ctx, docs); err != nil {
					b.Fatalf("index failed: %v", err)
				}
			}

			b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "docs/sec")
		})
	}
}

// BenchmarkEngineMemory_Scale measures memory usage at scale.
func BenchmarkEngineMemory_Scale(b *testing.B) {
	scales := []int{1000, 5000, 10000}

	for _, scale := range scales {
		b.Run(fmt.Sprintf("scale_%d", scale), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				engine, cleanup := setupScaleBenchmarkEngine(b, scale)
				cleanup()
				_ = engine
			}
		})
	}
}

// =============================================================================
// Benchmark Helpers
// =============================================================================

// setupScaleBenchmarkEngine creates an engine with mock stores pre-populated with data.
func setupScaleBenchmarkEngine(b *testing.B, numDocs int) (*Engine, func()) {
	b.Helper()

	bm25Results := generateBenchBM25Results(numDocs)
	vecResults := generateBenchVectorResults(numDocs)

	bm25 := &MockBM25Index{
		SearchFn: func(_ context.Context, _ string, limit int) ([]*store.BM25Result, error) {
			if limit > len(bm25Results) {
				limit = len(bm25Results)
			}
			return bm25Results[:limit], nil
		},
		StatsFn: func() *store.IndexStats {
			return &store.IndexStats{DocumentCount: numDocs}
		},
	}

	vec := &MockVectorStore{
		SearchFn: func(_ context.Context, _ []float32, k int) ([]*store.VectorResult, error) {
			if k > len(vecResults) {
				k = len(vecResults)
			}
			return vecResults[:k], nil
		},
		CountFn: func() int { return numDocs },
	}

	embedder := &MockEmbedder{
		EmbedFn: func(_ context.Context, _ string) ([]float32, error) {
			return make([]float32, 768), nil
		},
		DimensionsFn: func() int { return 768 },
	}

	metadata := NewMockMetadataStore()
	for i := 0; i < numDocs; i++ {
		id := fmt.Sprintf("doc-%d", i)
		metadata.docs[id] = &store.Document{
			ID:           id,
			Title:        fmt.Sprintf("Document %d", i),
			Content:      fmt.Sprintf("relay gossip note %d about decentralized identity", i),
			DocumentType: "nostr:note",
			IndexedAt:    time.Unix(int64(i), 0),
		}
	}

	engine := New(bm25, vec, embedder, metadata, DefaultConfig())

	return engine, func() {
		_ = engine.Close()
	}
}

// generateBenchBM25Results creates mock BM25 search results.
func generateBenchBM25Results(n int) []*store.BM25Result {
	results := make([]*store.BM25Result, benchMin(n, 100))
	for i := range results {
		results[i] = &store.BM25Result{
			DocID:        fmt.Sprintf("doc-%d", i),
			Score:        10.0 - float64(i)*0.1,
			MatchedTerms: []string{"relay", "gossip"},
		}
	}
	return results
}

// generateBenchVectorResults creates mock vector search results.
func generateBenchVectorResults(n int) []*store.VectorResult {
	results := make([]*store.VectorResult, benchMin(n, 100))
	for i := range results {
		results[i] = &store.VectorResult{
			ID:       fmt.Sprintf("doc-%d", i),
			Distance: float32(i) * 0.01,
			Score:    1.0 - float32(i)*0.01,
		}
	}
	return results
}

// generateBenchQueries creates a set of realistic queries for benchmarking.
func generateBenchQueries(n int) []string {
	baseQueries := []string{
		"relay discovery",
		"lightning network payments",
		"decentralized identity",
		"proof of work difficulty",
		"event signature verification",
		"subscription filter matching",
		"web of trust scoring",
		"content moderation policy",
		"nostr connect authentication",
		"ontology term expansion",
	}

	queries := make([]string, n)
	for i := 0; i < n; i++ {
		queries[i] = baseQueries[i%len(baseQueries)]
	}
	return queries
}

// generateBenchDocuments creates documents for indexing benchmarks.
func generateBenchDocuments(n int) []*store.Document {
	docs := make([]*store.Document, n)
	for i := 0; i < n; i++ {
		docs[i] = &store.Document{
			ID:           fmt.Sprintf("bench-doc-%d", i),
			Title:        fmt.Sprintf("Bench document %d", i),
			Content:      generateBenchContent(800 + rand.Intn(400)),
			DocumentType: "nostr:note",
		}
	}
	return docs
}

// generateBenchContent creates realistic prose content of a given size.
func generateBenchContent(size int) string {
	template := `The relay accepted the event after verifying its signature and checking
the subscription filters against connected clients. Web of trust scoring
applied a decay factor per hop while the ontology expander injected related
terms before the query reached the fusion stage.
`
	content := ""
	for len(content) < size {
		content += template
	}
	return content[:size]
}

func benchMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}
