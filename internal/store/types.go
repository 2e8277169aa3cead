// Package store is the persistence layer for indexed documents: an inverted
// lexical index (SQLite FTS5 by default, Bleve as the legacy backend), an
// approximate-nearest-neighbor vector index
// (coder/hnsw), and a relational metadata store (SQLite) for the documents
// themselves, their attributes, and connector run state.
package store

import (
	"context"
	"fmt"
	"time"
)

// State keys for metadata store (embedder/index compatibility tracking).
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
)

// Checkpoint state keys for resumable connector runs.
const (
	// StateKeyCheckpointStage stores the current run stage: "fetching"|"embedding"|"indexing"|"complete"
	StateKeyCheckpointStage = "checkpoint_stage"
	// StateKeyCheckpointTotal stores total number of documents to process
	StateKeyCheckpointTotal = "checkpoint_total"
	// StateKeyCheckpointEmbedded stores count of documents that have been embedded
	StateKeyCheckpointEmbedded = "checkpoint_embedded"
	// StateKeyCheckpointTimestamp stores when checkpoint was last updated
	StateKeyCheckpointTimestamp = "checkpoint_timestamp"
	// StateKeyCheckpointEmbedderModel stores the embedder model used for this checkpoint,
	// to validate embedder consistency on resume and avoid a dimension mismatch
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// Document is the universal indexed unit (spec.md §3's Document).
type Document struct {
	ID         string `json:"id"`                    // opaque UUID
	SourceID   string `json:"source_id,omitempty"`   // references a Connector; empty for HTTP-ingested documents
	ExternalID string `json:"external_id,omitempty"` // opaque string, unique per SourceID

	Title        string `json:"title"`
	Content      string `json:"content"`
	URL          string `json:"url,omitempty"`
	DocumentType string `json:"document_type"` // taxonomy tag, e.g. "nostr:note", "github:repo", "docs:api", "manual"

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IndexedAt    time.Time `json:"indexed_at"`
	LastModified time.Time `json:"last_modified"` // source-reported

	Embedding        []float32         `json:"-"`                           // may be nil until enrichment completes; never serialized
	Attributes       map[string]string `json:"attributes,omitempty"`        // open bag for source-specific metadata (flattened JSON)
	PermissionGroups []string          `json:"permission_groups,omitempty"` // empty = public
	QualityScore     float64           `json:"quality_score"`               // 0..1

	Tags []string `json:"tags,omitempty"` // facet/filter tags, derived by enrichment or source
}

// MetadataStore persists Document rows, their derived attributes, and
// connector run checkpoints/state in a relational store (SQLite by
// default; see sqlite_metadata.go).
type MetadataStore interface {
	// Upsert writes a document (insert or full update) and reports which.
	Upsert(ctx context.Context, doc *Document) (created bool, err error)

	// Get fetches a single document by id.
	Get(ctx context.Context, id string) (*Document, error)

	// FetchByIds fetches documents preserving the order of ids; missing
	// ids are simply omitted from the result.
	FetchByIds(ctx context.Context, ids []string) ([]*Document, error)

	// Delete removes a document by id.
	Delete(ctx context.Context, id string) error

	// DeleteBySource removes all documents for sourceID whose external_id
	// is not in keepExternalIDs — the incremental-sync delete sweep.
	DeleteBySource(ctx context.Context, sourceID string, keepExternalIDs []string) (removed int, err error)

	// ListSinceForSource returns (external_id, last_modified) pairs for a
	// source's documents, used by incremental sync to diff against the
	// source's freshly-fetched metadata.
	ListSinceForSource(ctx context.Context, sourceID string) (map[string]time.Time, error)

	// Query returns documents matching a filter expression, used by the
	// search engine's non-ranked metadata lookups (the empty-query
	// listing) and by the tag listing endpoint.
	Query(ctx context.Context, filter FilterExpr, cursor string, limit int) ([]*Document, string, error)

	// SaveEmbedding persists a document's embedding independent of the
	// rest of the row, allowing enrichment to complete asynchronously.
	SaveEmbedding(ctx context.Context, id string, embedding []float32, model string) error
	GetAllEmbeddings(ctx context.Context) (map[string][]float32, error)
	GetEmbeddingStats(ctx context.Context) (withEmbedding, withoutEmbedding int, err error)

	// State operations (key-value store for runtime/index state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Checkpoint operations (for resumable connector runs)
	SaveRunCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error
	LoadRunCheckpoint(ctx context.Context) (*RunCheckpoint, error)
	ClearRunCheckpoint(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RunCheckpoint represents the saved state of a connector run for resume.
type RunCheckpoint struct {
	Stage         string    // "fetching", "embedding", "indexing", "complete"
	Total         int       // Total documents to process
	EmbeddedCount int       // Number of documents with embeddings
	Timestamp     time.Time // When checkpoint was last updated
	EmbedderModel string    // Embedder model name used for this checkpoint
}

// IndexInfo contains comprehensive information about an index, for the
// admin `corequery-admin status` command and the HTTP API's health check.
type IndexInfo struct {
	Location string // Index data directory

	IndexModel      string // Model name used to build index
	IndexBackend    string // Backend (ollama, static)
	IndexDimensions int    // Embedding dimensions

	DocumentCount   int   // Number of documents in the index
	IndexSizeBytes  int64 // Total index size (BM25 + vector)
	BM25SizeBytes   int64 // BM25 index file size
	VectorSizeBytes int64 // Vector store file size

	CreatedAt time.Time // When index was first created
	UpdatedAt time.Time // When index was last updated

	CurrentModel      string // Current embedder model
	CurrentBackend    string // Current embedder backend
	CurrentDimensions int    // Current embedder dimensions
	Compatible        bool   // Whether current embedder is compatible with index
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// BM25Doc is the minimal (id, text) pair the lexical index works over.
// The full Document record lives in MetadataStore; BM25Doc only carries
// what the tokenizer needs.
type BM25Doc struct {
	ID      string
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using BM25 algorithm.
type BM25Index interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*BM25Doc) error

	// Search returns documents matching query, scored by BM25
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index. Only StopWords is read by the
// indexes: K1, B and MinTokenLength are carried but unused (SQLite FTS5's
// bm25() uses its built-in k1=1.2 and b=0.75, and Tokenize always drops
// tokens shorter than 2 characters).
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English function words filtered out of
// lexical indexing so they don't dominate term-frequency scoring.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else",
	"is", "are", "was", "were", "be", "been", "being",
	"of", "in", "on", "at", "to", "for", "with", "by", "from", "as",
	"this", "that", "these", "those", "it", "its",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Document ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (768 for Hugot/EmbeddingGemma, 384 for MiniLM, 256 for static)
	Dimensions int

	// Quantization names a vector precision: "f32", "f16", "i8"
	// (DefaultVectorStoreConfig: "f16"). HNSWStore does not read it and
	// always stores float32 vectors.
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (DefaultVectorStoreConfig: 32;
	// NewHNSWStore uses 16 when it is zero)
	M int

	// EfConstruction is HNSW build-time search width
	// (DefaultVectorStoreConfig: 128). HNSWStore does not read it.
	EfConstruction int

	// EfSearch is HNSW query-time search width (DefaultVectorStoreConfig: 64;
	// NewHNSWStore uses 20 when it is zero)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// FilterExpr narrows a search or metadata Query to documents matching all
// of its non-zero fields (an implicit AND across fields; within a field,
// Tags/DocumentTypes/SourceIDs are OR'd per spec.md §3/4.2).
type FilterExpr struct {
	DocumentTypes []string // equality when len==1, IN when more

	// TagsAny matches documents with at least one of these tags.
	TagsAny []string
	// TagsAll matches documents with every one of these tags.
	TagsAll []string

	MinQuality float64 // quality_score >= MinQuality; 0 means unset

	CreatedAfter  time.Time // zero value means unset
	CreatedBefore time.Time

	SourceIDs []string

	// UserGroups implements the permission predicate: a document is visible
	// when its PermissionGroups is empty (public) or is a subset of
	// UserGroups. A nil/empty UserGroups only sees public documents.
	UserGroups []string
}

// IsZero reports whether the filter sets none of its document-attribute
// constraints. UserGroups is not considered, and Matches still applies the
// permission predicate to a zero filter, so restricted documents do not
// match it.
func (f FilterExpr) IsZero() bool {
	return len(f.DocumentTypes) == 0 && len(f.TagsAny) == 0 && len(f.TagsAll) == 0 &&
		f.MinQuality == 0 && f.CreatedAfter.IsZero() && f.CreatedBefore.IsZero() &&
		len(f.SourceIDs) == 0
}

// Matches evaluates the filter against a document in memory — used by the
// search engine, which fetches candidates from the lexical and vector
// indexes first and filters after, by tests, and by SQLiteStore.Query for
// the tag and permission predicates it does not express in its WHERE clause.
func (f FilterExpr) Matches(doc *Document) bool {
	if len(f.DocumentTypes) > 0 && !containsString(f.DocumentTypes, doc.DocumentType) {
		return false
	}
	if len(f.SourceIDs) > 0 && !containsString(f.SourceIDs, doc.SourceID) {
		return false
	}
	if f.MinQuality > 0 && doc.QualityScore < f.MinQuality {
		return false
	}
	if !f.CreatedAfter.IsZero() && doc.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && doc.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	if len(f.TagsAny) > 0 && !intersects(f.TagsAny, doc.Tags) {
		return false
	}
	if len(f.TagsAll) > 0 && !containsAll(doc.Tags, f.TagsAll) {
		return false
	}
	if len(doc.PermissionGroups) > 0 && !containsAll(f.UserGroups, doc.PermissionGroups) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsString(b, x) {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		if !containsString(haystack, n) {
			return false
		}
	}
	return true
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'corequery reindex --force')", e.Expected, e.Got)
}
