// Package search provides hybrid search combining BM25 lexical and HNSW
// vector search. Results are fused via a fixed weighted-sum of normalized
// scores rather than rank-based fusion.
package search

import (
	"context"
	"time"

	"github.com/federails/corequery/internal/store"
)

// Mode selects which retrieval paths a Search request exercises.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeVector Mode = "vector"
	ModeText   Mode = "text"
)

// SearchEngine executes queries against the fused BM25/vector index.
type SearchEngine interface {
	// Search executes a query and returns ranked, hydrated documents.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)

	// Index adds or updates documents in both BM25 and vector indices.
	Index(ctx context.Context, docs []*store.Document) error

	// Delete removes documents from both indices.
	Delete(ctx context.Context, docIDs []string) error

	// Stats returns engine statistics.
	Stats() *EngineStats

	// Close releases all resources.
	Close() error
}

// UserContext carries the requesting user's permission groups and, for
// plugins like WoT that key off social graph distance, their pubkey.
type UserContext struct {
	UserGroups []string
	UserPubkey string
}

// SearchRequest is the input to Search: `{query, mode, limit, offset,
// filters, user_context, expand?, explain?}`.
type SearchRequest struct {
	Query string
	Mode  Mode // default ModeHybrid

	Limit  int // default 10, max 100
	Offset int

	Filters     store.FilterExpr
	UserContext UserContext

	// Weights overrides the default 0.7/0.3 vector/lexical fusion weights.
	Weights *Weights

	// Expand runs Ontology.Expand on the query before search (default true).
	Expand bool

	// Explain attaches a per-document score breakdown to each result.
	Explain bool
}

// Weights configures the relative importance of vector vs lexical scores
// in hybrid fusion. Fixed at 0.7/0.3 per default, configurable per request
// or via EngineConfig.
type Weights struct {
	// Vector is the weight for cosine-similarity vector search (default 0.7).
	Vector float64

	// Lexical is the weight for normalized BM25 score (default 0.3).
	Lexical float64
}

// DefaultWeights returns the spec-mandated 0.7 vector / 0.3 lexical fusion
// weights used when a request does not override them.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, Lexical: 0.3}
}

// SearchResponse is the output of Search: ranked results plus facets
// computed over the pre-truncation candidate pool.
type SearchResponse struct {
	Results []*SearchResult
	Total   int // size of the candidate pool before offset/limit truncation
	Facets  Facets
}

// SearchResult is a single ranked, hydrated document with its score
// breakdown.
type SearchResult struct {
	Document *store.Document

	// Score is the final score after fusion, trigger adjustments, and the
	// plugin pipeline.
	Score float64

	VectorScore float64 // raw vector similarity score as returned by the vector store, 0 if absent from vector results
	TextScore   float64 // raw BM25 score as returned by the lexical index, 0 if absent from lexical results

	VectorRank int // 1-indexed position in vector results, 0 if absent
	TextRank   int // 1-indexed position in lexical results, 0 if absent

	InBothLists bool

	MatchedTerms []string

	// Explain contains the per-document score breakdown when the request
	// set Explain=true.
	Explain *ExplainData
}

// Facets aggregates counts over the pre-truncation candidate pool, keyed
// by the facet value, per spec.md's `kinds, categories, tags, authors`.
type Facets struct {
	DocumentTypes map[string]int // "kinds"/"categories" — Document.DocumentType
	Tags          map[string]int
	Authors       map[string]int // Document.Attributes["author"], when present
}

// newFacets returns a Facets with all maps initialized empty.
func newFacets() Facets {
	return Facets{
		DocumentTypes: make(map[string]int),
		Tags:          make(map[string]int),
		Authors:       make(map[string]int),
	}
}

// EngineStats provides statistics about the search engine.
type EngineStats struct {
	BM25Stats   *store.IndexStats
	VectorCount int
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int

	// DefaultWeights are the default vector/lexical fusion weights.
	DefaultWeights Weights

	// SearchTimeout is the maximum search duration (default: 5s).
	SearchTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		DefaultWeights: DefaultWeights(),
		SearchTimeout:  5 * time.Second,
	}
}

// QueryType represents the classification category for a search query.
type QueryType string

const (
	// QueryTypeLexical indicates the query needs exact/keyword matching.
	// Used for: hex ids, quoted phrases, short identifiers.
	QueryTypeLexical QueryType = "LEXICAL"

	// QueryTypeSemantic indicates the query is natural language seeking meaning.
	// Used for: questions, conceptual queries, descriptions.
	QueryTypeSemantic QueryType = "SEMANTIC"

	// QueryTypeMixed indicates the query benefits from both approaches.
	QueryTypeMixed QueryType = "MIXED"
)

// Classifier determines optimal fusion weights for a query.
type Classifier interface {
	// Classify analyzes a query and returns its type and optimal weights.
	// On error, implementations should return (QueryTypeMixed, DefaultWeights(), err).
	Classify(ctx context.Context, query string) (QueryType, Weights, error)
}

// WeightsForQueryType returns the predefined weights for a query type.
func WeightsForQueryType(qt QueryType) Weights {
	switch qt {
	case QueryTypeLexical:
		return Weights{Vector: 0.15, Lexical: 0.85}
	case QueryTypeSemantic:
		return Weights{Vector: 0.85, Lexical: 0.15}
	default:
		return DefaultWeights()
	}
}

// ExplainData contains the per-document score breakdown returned when a
// request sets Explain=true: `{vector_score, text_score, boosts,
// plugin_adjustment}`.
type ExplainData struct {
	Query string

	VectorScore float64
	TextScore   float64

	// Boosts is the cumulative adjustment applied by Trigger actions
	// (doc-type boost, term-injection adjustments) between fusion and the
	// plugin pipeline.
	Boosts float64

	// PluginAdjustment is the cumulative multiplicative/additive adjustment
	// applied by the plugin pipeline (e.g. WoT).
	PluginAdjustment float64

	VectorResultCount int
	TextResultCount   int

	Weights Weights

	BM25Only bool // true when Mode == ModeText
}
