package search

import (
	"context"
	"time"

	"github.com/federails/corequery/internal/store"
)

// MockBM25Index is a configurable test double for store.BM25Index.
type MockBM25Index struct {
	SearchFn func(ctx context.Context, query string, limit int) ([]*store.BM25Result, error)
	IndexFn  func(ctx context.Context, docs []*store.BM25Doc) error
	DeleteFn func(ctx context.Context, docIDs []string) error
	StatsFn  func() *store.IndexStats
}

func (m *MockBM25Index) Index(ctx context.Context, docs []*store.BM25Doc) error {
	if m.IndexFn != nil {
		return m.IndexFn(ctx, docs)
	}
	return nil
}

func (m *MockBM25Index) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, docIDs)
	}
	return nil
}

func (m *MockBM25Index) AllIDs() ([]string, error) { return nil, nil }

func (m *MockBM25Index) Stats() *store.IndexStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return &store.IndexStats{}
}

func (m *MockBM25Index) Save(path string) error { return nil }
func (m *MockBM25Index) Load(path string) error { return nil }
func (m *MockBM25Index) Close() error           { return nil }

var _ store.BM25Index = (*MockBM25Index)(nil)

// MockVectorStore is a configurable test double for store.VectorStore.
type MockVectorStore struct {
	SearchFn func(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
	AddFn    func(ctx context.Context, ids []string, vectors [][]float32) error
	DeleteFn func(ctx context.Context, ids []string) error
	CountFn  func() int
}

func (m *MockVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if m.AddFn != nil {
		return m.AddFn(ctx, ids, vectors)
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, k)
	}
	return nil, nil
}

func (m *MockVectorStore) Delete(ctx context.Context, ids []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, ids)
	}
	return nil
}

func (m *MockVectorStore) AllIDs() []string       { return nil }
func (m *MockVectorStore) Contains(id string) bool { return false }

func (m *MockVectorStore) Count() int {
	if m.CountFn != nil {
		return m.CountFn()
	}
	return 0
}

func (m *MockVectorStore) Save(path string) error { return nil }
func (m *MockVectorStore) Load(path string) error { return nil }
func (m *MockVectorStore) Close() error           { return nil }

var _ store.VectorStore = (*MockVectorStore)(nil)

// MockEmbedder is a configurable test double for embed.Embedder.
type MockEmbedder struct {
	EmbedFn      func(ctx context.Context, text string) ([]float32, error)
	EmbedBatchFn func(ctx context.Context, texts []string) ([][]float32, error)
	DimensionsFn func() int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFn != nil {
		return m.EmbedFn(ctx, text)
	}
	return make([]float32, m.Dimensions()), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedBatchFn != nil {
		return m.EmbedBatchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.Dimensions())
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.DimensionsFn != nil {
		return m.DimensionsFn()
	}
	return 768
}

func (m *MockEmbedder) ModelName() string                  { return "mock-embedder" }
func (m *MockEmbedder) Available(ctx context.Context) bool { return true }
func (m *MockEmbedder) Close() error                       { return nil }

// MockMetadataStore is an in-memory test double for store.MetadataStore.
type MockMetadataStore struct {
	docs map[string]*store.Document
}

func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{docs: make(map[string]*store.Document)}
}

func (m *MockMetadataStore) Upsert(ctx context.Context, doc *store.Document) (bool, error) {
	_, existed := m.docs[doc.ID]
	m.docs[doc.ID] = doc
	return !existed, nil
}

func (m *MockMetadataStore) Get(ctx context.Context, id string) (*store.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, nil
}

func (m *MockMetadataStore) FetchByIds(ctx context.Context, ids []string) ([]*store.Document, error) {
	out := make([]*store.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockMetadataStore) Delete(ctx context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func (m *MockMetadataStore) DeleteBySource(ctx context.Context, sourceID string, keepExternalIDs []string) (int, error) {
	return 0, nil
}

func (m *MockMetadataStore) ListSinceForSource(ctx context.Context, sourceID string) (map[string]time.Time, error) {
	return nil, nil
}

func (m *MockMetadataStore) Query(ctx context.Context, filter store.FilterExpr, cursor string, limit int) ([]*store.Document, string, error) {
	out := make([]*store.Document, 0)
	for _, d := range m.docs {
		if filter.Matches(d) {
			out = append(out, d)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, "", nil
}

func (m *MockMetadataStore) SaveEmbedding(ctx context.Context, id string, embedding []float32, model string) error {
	if d, ok := m.docs[id]; ok {
		d.Embedding = embedding
	}
	return nil
}

func (m *MockMetadataStore) GetAllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	out := make(map[string][]float32, len(m.docs))
	for id, d := range m.docs {
		out[id] = d.Embedding
	}
	return out, nil
}

func (m *MockMetadataStore) GetEmbeddingStats(ctx context.Context) (int, int, error) {
	with, without := 0, 0
	for _, d := range m.docs {
		if d.Embedding != nil {
			with++
		} else {
			without++
		}
	}
	return with, without, nil
}

func (m *MockMetadataStore) GetState(ctx context.Context, key string) (string, error) { return "", nil }
func (m *MockMetadataStore) SetState(ctx context.Context, key, value string) error    { return nil }

func (m *MockMetadataStore) SaveRunCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	return nil
}

func (m *MockMetadataStore) LoadRunCheckpoint(ctx context.Context) (*store.RunCheckpoint, error) {
	return nil, nil
}

func (m *MockMetadataStore) ClearRunCheckpoint(ctx context.Context) error { return nil }
func (m *MockMetadataStore) Close() error                                 { return nil }

var _ store.MetadataStore = (*MockMetadataStore)(nil)

// MockClassifier implements Classifier for engine-level tests.
type MockClassifier struct {
	ClassifyFn func(ctx context.Context, query string) (QueryType, Weights, error)
}

func (m *MockClassifier) Classify(ctx context.Context, query string) (QueryType, Weights, error) {
	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, query)
	}
	return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), nil
}

var _ Classifier = (*MockClassifier)(nil)
