package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/federails/corequery/internal/embed"
	"github.com/federails/corequery/internal/store"
	"github.com/federails/corequery/internal/telemetry"
)

// Engine implements hybrid search combining BM25 and vector search over
// the Document metadata store.
type Engine struct {
	bm25       store.BM25Index
	vector     store.VectorStore
	embedder   embed.Embedder
	metadata   store.MetadataStore
	config     EngineConfig
	fusion     *WeightedFusion
	classifier Classifier              // Optional query classifier for dynamic weights
	metrics    *telemetry.QueryMetrics // Optional query telemetry collector
	reranker   Reranker                // Optional cross-encoder reranker
	expander   QueryExpander           // Optional Ontology query expansion for the lexical path
	triggers   TriggerApplier          // Optional Ontology trigger hook (doc-type boosts, term injections)
	plugins    PluginPipeline          // Optional post-fusion plugin pipeline (e.g. WoT)
	mu         sync.RWMutex
}

// Ensure Engine implements SearchEngine interface.
var _ SearchEngine = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrDimensionMismatch is returned when query embedding dimension doesn't match index dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithClassifier sets an optional query classifier for dynamic weight selection.
// When set and no explicit weights are provided in the request, the classifier
// determines optimal vector/lexical weights based on query characteristics.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithMetrics sets an optional query metrics collector for telemetry.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithReranker sets an optional cross-encoder reranker for result refinement.
// When set, results are reranked after fusion but before the trigger hook.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithExpander sets the Ontology query expander consulted before the
// lexical search when a request has Expand set.
func WithExpander(x QueryExpander) EngineOption {
	return func(e *Engine) {
		e.expander = x
	}
}

// WithTriggers sets the Ontology trigger hook applied between fusion and
// the plugin pipeline (doc-type boost, term-injection adjustments).
func WithTriggers(t TriggerApplier) EngineOption {
	return func(e *Engine) {
		e.triggers = t
	}
}

// WithPlugins sets the post-fusion plugin pipeline (e.g. the WoT plugin).
func WithPlugins(p PluginPipeline) EngineOption {
	return func(e *Engine) {
		e.plugins = p
	}
}

// NewEngine creates a new hybrid search engine with the given dependencies.
// Returns an error if any required dependency is nil.
func NewEngine(
	bm25 store.BM25Index,
	vector store.VectorStore,
	embedder embed.Embedder,
	metadata store.MetadataStore,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	e := &Engine{
		bm25:     bm25,
		vector:   vector,
		embedder: embedder,
		metadata: metadata,
		config:   config,
		fusion:   NewWeightedFusion(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// New creates a new hybrid search engine with the given dependencies.
// Deprecated: Use NewEngine instead. This function panics on nil dependencies.
func New(
	bm25 store.BM25Index,
	vector store.VectorStore,
	embedder embed.Embedder,
	metadata store.MetadataStore,
	config EngineConfig,
	opts ...EngineOption,
) *Engine {
	e, err := NewEngine(bm25, vector, embedder, metadata, config, opts...)
	if err != nil {
		panic("search.New: " + err.Error())
	}
	return e
}

// Search executes a query in this order: resolve weights, expand the
// lexical query, run vector and/or lexical search depending on mode, fuse,
// rerank (when a reranker is set), hydrate while applying the permission
// predicate and filters, apply triggers, apply the plugin pipeline, sort,
// compute facets from the pre-truncation pool, and paginate.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	req = e.applyDefaults(req)
	query := strings.TrimSpace(req.Query)

	filters := req.Filters
	filters.UserGroups = req.UserContext.UserGroups

	// Empty query with filters: return most-recent documents matching
	// filters. Empty query with no filters: an empty result set, not an
	// error.
	if query == "" {
		if req.Filters.IsZero() {
			return &SearchResponse{Results: []*SearchResult{}, Facets: newFacets()}, nil
		}
		return e.mostRecent(ctx, req, filters)
	}

	weights := e.resolveWeights(ctx, req, query)
	lexQuery := e.expandQuery(ctx, req, query)

	kv := maxInt(req.Limit*4, 50)

	var bm25Results []*store.BM25Result
	var vecResults []*store.VectorResult
	var searchErr error

	switch req.Mode {
	case ModeVector:
		vecResults, searchErr = e.vectorSearch(ctx, query, kv)
	case ModeText:
		bm25Results, searchErr = e.lexicalSearch(ctx, lexQuery, kv)
	default: // ModeHybrid
		bm25Results, vecResults, searchErr = e.parallelSearch(ctx, query, lexQuery, kv)
	}
	if searchErr != nil && bm25Results == nil && vecResults == nil {
		return nil, searchErr
	}

	fused := e.fusion.Fuse(bm25Results, vecResults, weights)

	reranked := e.rerankResults(ctx, query, fused)

	results, pool, err := e.hydrate(ctx, reranked, filters)
	if err != nil {
		return nil, err
	}

	// Explain data is attached before the trigger/plugin stages so they
	// can record their adjustments into it.
	if req.Explain {
		for _, r := range results {
			e.attachExplainData(r, req, len(bm25Results), len(vecResults))
		}
	}

	e.applyTriggers(ctx, query, results)
	e.applyPlugins(ctx, req.UserContext, results)

	sort.Slice(results, func(i, j int) bool {
		return resultLess(results[i], results[j])
	})

	facets := computeFacets(pool)

	total := len(results)
	page := paginate(results, req.Offset, req.Limit)

	e.recordMetrics(query, weights, total, time.Since(start))

	return &SearchResponse{Results: page, Total: total, Facets: facets}, nil
}

// mostRecent handles the empty-query edge case: return the most recent
// documents matching filters, with no scoring.
func (e *Engine) mostRecent(ctx context.Context, req SearchRequest, filters store.FilterExpr) (*SearchResponse, error) {
	docs, _, err := e.metadata.Query(ctx, filters, "", maxInt(req.Offset+req.Limit, 50))
	if err != nil {
		return nil, fmt.Errorf("query most-recent documents: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].IndexedAt.After(docs[j].IndexedAt)
	})

	results := make([]*SearchResult, len(docs))
	for i, d := range docs {
		results[i] = &SearchResult{Document: d}
	}

	facets := computeFacets(results)
	total := len(results)
	page := paginate(results, req.Offset, req.Limit)
	return &SearchResponse{Results: page, Total: total, Facets: facets}, nil
}

// resolveWeights picks request-explicit weights, else classifier weights,
// else the configured default.
func (e *Engine) resolveWeights(ctx context.Context, req SearchRequest, query string) Weights {
	if req.Weights != nil {
		return *req.Weights
	}
	if e.classifier != nil {
		if _, weights, err := e.classifier.Classify(ctx, query); err == nil {
			return weights
		}
	}
	return e.config.DefaultWeights
}

// applyDefaults fills in default values for a search request.
func (e *Engine) applyDefaults(req SearchRequest) SearchRequest {
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.Limit <= 0 {
		req.Limit = e.config.DefaultLimit
	}
	if req.Limit > e.config.MaxLimit {
		req.Limit = e.config.MaxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return req
}

// vectorSearch embeds the query and runs VectorSearch(qvec, k_v, ...).
func (e *Engine) vectorSearch(ctx context.Context, query string, k int) ([]*store.VectorResult, error) {
	if err := e.validateDimensions(ctx); err != nil {
		slog.Warn("dimension mismatch detected, vector search skipped", slog.String("error", err.Error()))
		return nil, nil
	}
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.vector.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// lexicalSearch runs LexicalSearch(plan_as_tsquery, k_l, ...).
func (e *Engine) lexicalSearch(ctx context.Context, query string, k int) ([]*store.BM25Result, error) {
	results, err := e.bm25.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return results, nil
}

// expandQuery appends ontology expansion terms to the lexical query when
// the request asks for expansion. The vector path is unaffected.
func (e *Engine) expandQuery(ctx context.Context, req SearchRequest, query string) string {
	if !req.Expand || e.expander == nil {
		return query
	}
	extra := e.expander.ExpandTerms(ctx, query)
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// parallelSearch executes vector and lexical searches concurrently,
// tolerating a single-side failure (graceful degradation).
func (e *Engine) parallelSearch(ctx context.Context, query, lexQuery string, k int) (
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	err error,
) {
	var wg sync.WaitGroup
	var bm25Err, vecErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		bm25Results, bm25Err = e.lexicalSearch(ctx, lexQuery, k)
	}()
	go func() {
		defer wg.Done()
		vecResults, vecErr = e.vectorSearch(ctx, query, k)
	}()
	wg.Wait()

	if bm25Err != nil && vecErr != nil {
		return nil, nil, errors.Join(bm25Err, vecErr)
	}
	if bm25Err != nil {
		slog.Warn("lexical search failed, continuing with vector-only results", slog.String("error", bm25Err.Error()))
	}
	if vecErr != nil {
		slog.Warn("vector search failed, continuing with lexical-only results", slog.String("error", vecErr.Error()))
	}
	return bm25Results, vecResults, nil
}

// hydrate fetches Documents for the fused candidate ids, applies the
// permission predicate and remaining filters, and builds SearchResults.
// It returns both the filtered pool (for facets) and the same slice (for
// sorting/pagination) since facets are computed pre-truncation.
func (e *Engine) hydrate(ctx context.Context, fused []*FusedResult, filters store.FilterExpr) ([]*SearchResult, []*SearchResult, error) {
	if len(fused) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.DocID
		byID[f.DocID] = f
	}

	docs, err := e.metadata.FetchByIds(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch documents: %w", err)
	}

	results := make([]*SearchResult, 0, len(docs))
	for _, doc := range docs {
		if !filters.Matches(doc) {
			continue
		}
		f := byID[doc.ID]
		results = append(results, &SearchResult{
			Document:     doc,
			Score:        f.Score,
			VectorScore:  f.VecScore,
			TextScore:    f.BM25Score,
			VectorRank:   f.VecRank,
			TextRank:     f.BM25Rank,
			InBothLists:  f.InBothLists,
			MatchedTerms: f.MatchedTerms,
		})
	}
	return results, results, nil
}

// applyTriggers runs the Ontology trigger hook (step 6) when configured.
func (e *Engine) applyTriggers(ctx context.Context, query string, results []*SearchResult) {
	if e.triggers == nil {
		return
	}
	for _, r := range results {
		adjusted, boost := e.triggers.Apply(ctx, query, r.Document, r.Score)
		r.Score = adjusted
		if r.Explain != nil {
			r.Explain.Boosts = boost
		}
	}
}

// applyPlugins runs the plugin pipeline (step 7) when configured. Errors
// from an individual plugin are non-fatal by contract of PluginPipeline.
func (e *Engine) applyPlugins(ctx context.Context, userCtx UserContext, results []*SearchResult) {
	if e.plugins == nil {
		return
	}
	for _, r := range results {
		before := r.Score
		r.Score = e.plugins.Apply(ctx, r.Document, userCtx, r.Score)
		if r.Explain != nil {
			r.Explain.PluginAdjustment = r.Score - before
		}
	}
}

// resultLess orders results: final score descending, then indexed_at
// descending, then id ascending.
func resultLess(a, b *SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Document.IndexedAt.Equal(b.Document.IndexedAt) {
		return a.Document.IndexedAt.After(b.Document.IndexedAt)
	}
	return a.Document.ID < b.Document.ID
}

// paginate truncates results to [offset, offset+limit).
func paginate(results []*SearchResult, offset, limit int) []*SearchResult {
	if offset >= len(results) {
		return []*SearchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

// computeFacets aggregates document_type, tags, and author counts over
// the pre-truncation candidate pool.
func computeFacets(results []*SearchResult) Facets {
	f := newFacets()
	for _, r := range results {
		d := r.Document
		if d.DocumentType != "" {
			f.DocumentTypes[d.DocumentType]++
		}
		for _, tag := range d.Tags {
			f.Tags[tag]++
		}
		if author, ok := d.Attributes["author"]; ok && author != "" {
			f.Authors[author]++
		}
	}
	return f
}

// attachExplainData populates ExplainData on a single result.
func (e *Engine) attachExplainData(r *SearchResult, req SearchRequest, bm25Count, vecCount int) {
	r.Explain = &ExplainData{
		Query:             req.Query,
		VectorScore:       r.VectorScore,
		TextScore:         r.TextScore,
		VectorResultCount: vecCount,
		TextResultCount:   bm25Count,
		Weights:           e.resolveWeights(context.Background(), req, req.Query),
		BM25Only:          req.Mode == ModeText,
	}
}

// recordMetrics records query telemetry if metrics collector is configured.
func (e *Engine) recordMetrics(query string, weights Weights, resultCount int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryType(queryTypeForWeights(weights)),
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

func queryTypeForWeights(w Weights) QueryType {
	if w.Lexical > 0.6 {
		return QueryTypeLexical
	}
	if w.Vector >= 0.85 {
		return QueryTypeSemantic
	}
	return QueryTypeMixed
}

// rerankResults applies cross-encoder reranking to improve result relevance.
// Returns original results unchanged if reranker is nil, unavailable, or
// there are too few results to matter.
func (e *Engine) rerankResults(ctx context.Context, query string, fused []*FusedResult) []*FusedResult {
	if e.reranker == nil || len(fused) < 2 {
		return fused
	}
	if !e.reranker.Available(ctx) {
		return fused
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.DocID
	}
	docs, err := e.metadata.FetchByIds(ctx, ids)
	if err != nil {
		slog.Warn("failed to fetch documents for reranking, skipping", slog.String("error", err.Error()))
		return fused
	}
	contentByID := make(map[string]string, len(docs))
	for _, d := range docs {
		contentByID[d.ID] = d.Content
	}

	documents := make([]string, 0, len(fused))
	valid := make([]*FusedResult, 0, len(fused))
	for _, f := range fused {
		content, ok := contentByID[f.DocID]
		if ok && content != "" {
			documents = append(documents, content)
			valid = append(valid, f)
		}
	}
	if len(documents) == 0 {
		return fused
	}

	reranked, err := e.reranker.Rerank(ctx, query, documents, 0)
	if err != nil {
		slog.Warn("reranking failed, using original order", slog.String("error", err.Error()))
		return fused
	}

	results := make([]*FusedResult, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(valid) {
			continue
		}
		f := valid[rr.Index]
		f.Score = rr.Score
		results = append(results, f)
	}
	return results
}

// Index adds or updates documents in both the BM25 and vector indices and
// persists them in the metadata store.
func (e *Engine) Index(ctx context.Context, docs []*store.Document) error {
	if len(docs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bm25Docs := make([]*store.BM25Doc, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		bm25Docs[i] = &store.BM25Doc{ID: d.ID, Content: d.Content}
		texts[i] = d.Content
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}

	if err := e.bm25.Index(ctx, bm25Docs); err != nil {
		return fmt.Errorf("index in BM25: %w", err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if err := e.vector.Add(ctx, ids, embeddings); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}

	for i, d := range docs {
		d.Embedding = embeddings[i]
		if _, err := e.metadata.Upsert(ctx, d); err != nil {
			return fmt.Errorf("upsert document %s: %w", d.ID, err)
		}
	}

	if err := e.storeIndexEmbeddingInfo(ctx); err != nil {
		slog.Warn("failed to store index embedding info", slog.String("error", err.Error()))
	}

	return nil
}

// storeIndexEmbeddingInfo saves the current embedder's dimension and model
// to metadata, enabling detection of dimension mismatch when the embedder
// changes.
func (e *Engine) storeIndexEmbeddingInfo(ctx context.Context) error {
	dim := fmt.Sprintf("%d", e.embedder.Dimensions())
	model := e.embedder.ModelName()

	if err := e.metadata.SetState(ctx, store.StateKeyIndexDimension, dim); err != nil {
		return fmt.Errorf("failed to store index dimension: %w", err)
	}
	if err := e.metadata.SetState(ctx, store.StateKeyIndexModel, model); err != nil {
		return fmt.Errorf("failed to store index model: %w", err)
	}
	return nil
}

// validateDimensions checks if the current embedder dimension matches the
// indexed dimension. Returns nil if no index dimension is stored yet (first
// indexing run) or dimensions match.
func (e *Engine) validateDimensions(ctx context.Context) error {
	storedDim, err := e.metadata.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil || storedDim == "" {
		return nil
	}

	var indexDim int
	if _, err := fmt.Sscanf(storedDim, "%d", &indexDim); err != nil {
		slog.Warn("invalid stored index dimension", slog.String("value", storedDim))
		return nil
	}

	currentDim := e.embedder.Dimensions()
	if indexDim != currentDim {
		storedModel, _ := e.metadata.GetState(ctx, store.StateKeyIndexModel)
		currentModel := e.embedder.ModelName()
		return fmt.Errorf("%w: index has %d dimensions (%s), but current embedder has %d dimensions (%s); run reindex --force to rebuild",
			ErrDimensionMismatch, indexDim, storedModel, currentDim, currentModel)
	}
	return nil
}

// Delete removes documents from the BM25 index, vector store, and
// metadata store. The metadata store is the source of truth; BM25/vector
// orphans are harmless and filtered at hydration time.
func (e *Engine) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var hasOrphans bool

	if err := e.bm25.Delete(ctx, docIDs); err != nil {
		slog.Warn("BM25 delete failed, orphans will remain", slog.String("error", err.Error()))
		hasOrphans = true
	}
	if err := e.vector.Delete(ctx, docIDs); err != nil {
		slog.Warn("vector delete failed, orphans will remain", slog.String("error", err.Error()))
		hasOrphans = true
	}

	for _, id := range docIDs {
		if err := e.metadata.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
	}

	if hasOrphans {
		slog.Debug("delete completed with orphan remnants", slog.Int("documents", len(docIDs)))
	}
	return nil
}

// Stats returns engine statistics.
func (e *Engine) Stats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &EngineStats{
		BM25Stats:   e.bm25.Stats(),
		VectorCount: e.vector.Count(),
	}
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
