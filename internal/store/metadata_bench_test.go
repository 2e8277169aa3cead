package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// Targets:
// - Get: < 1ms per call
// - FetchByIds (batch): < 10ms for 100 documents
// - Upsert: > 1000 documents/sec

func setupBenchmarkMetadataStore(b *testing.B, numDocs int) (*SQLiteStore, func()) {
	b.Helper()
	dbPath := filepath.Join(b.TempDir(), "bench.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		b.Fatalf("NewSQLiteStore failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < numDocs; i++ {
		doc := &Document{
			ID:           fmt.Sprintf("doc-%d", i),
			SourceID:     "bench-source",
			ExternalID:   fmt.Sprintf("ext-%d", i),
			Title:        fmt.Sprintf("Document %d", i),
			Content:      fmt.Sprintf("benchmark content body for document %d", i),
			DocumentType: "docs:api",
			CreatedAt:    now,
			UpdatedAt:    now,
			LastModified: now,
			Tags:         []string{"bench"},
			QualityScore: 0.5,
		}
		if _, err := store.Upsert(ctx, doc); err != nil {
			b.Fatalf("seed Upsert failed: %v", err)
		}
	}

	return store, func() { _ = store.Close() }
}

// BenchmarkSQLiteStore_Get benchmarks single document retrieval.
func BenchmarkSQLiteStore_Get(b *testing.B) {
	store, cleanup := setupBenchmarkMetadataStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("doc-%d", i%1000)
		if _, err := store.Get(ctx, id); err != nil {
			b.Fatalf("Get failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_FetchByIds benchmarks batch retrieval at increasing sizes.
func BenchmarkSQLiteStore_FetchByIds(b *testing.B) {
	counts := []int{10, 20, 50, 100}

	for _, count := range counts {
		b.Run(fmt.Sprintf("count_%d", count), func(b *testing.B) {
			store, cleanup := setupBenchmarkMetadataStore(b, 1000)
			defer cleanup()

			ctx := context.Background()
			ids := make([]string, count)
			for i := 0; i < count; i++ {
				ids[i] = fmt.Sprintf("doc-%d", i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := store.FetchByIds(ctx, ids); err != nil {
					b.Fatalf("FetchByIds failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkSQLiteStore_Upsert benchmarks the write throughput of new documents.
func BenchmarkSQLiteStore_Upsert(b *testing.B) {
	store, cleanup := setupBenchmarkMetadataStore(b, 0)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		doc := &Document{
			ID:           fmt.Sprintf("bench-doc-%d", i),
			SourceID:     "bench-source",
			ExternalID:   fmt.Sprintf("bench-ext-%d", i),
			Title:        "benchmark document",
			Content:      "benchmark content",
			DocumentType: "docs:api",
			CreatedAt:    now,
			UpdatedAt:    now,
			LastModified: now,
		}
		if _, err := store.Upsert(ctx, doc); err != nil {
			b.Fatalf("Upsert failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_Query benchmarks filtered queries over a larger corpus.
func BenchmarkSQLiteStore_Query(b *testing.B) {
	store, cleanup := setupBenchmarkMetadataStore(b, 5000)
	defer cleanup()

	ctx := context.Background()
	filter := FilterExpr{DocumentTypes: []string{"docs:api"}, MinQuality: 0.25}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := store.Query(ctx, filter, "", 50); err != nil {
			b.Fatalf("Query failed: %v", err)
		}
	}
}
