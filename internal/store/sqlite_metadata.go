package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements MetadataStore on top of modernc.org/sqlite,
// the document-record counterpart to SQLiteBM25Index's FTS5 index.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) the metadata database at
// path. An empty path opens an in-memory database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer, WAL readers: same contention model as SQLiteBM25Index.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		indexed_at DATETIME NOT NULL,
		last_modified DATETIME NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}',
		permission_groups TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		quality_score REAL NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_source_external
		ON documents(source_id, external_id) WHERE source_id != '';
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(document_type);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS embeddings (
		doc_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		vector BLOB NOT NULL,
		model TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kv_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entity_relationships (
		entity_type TEXT NOT NULL,
		normalized_value TEXT NOT NULL,
		document_ids TEXT NOT NULL DEFAULT '[]',
		document_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (entity_type, normalized_value)
	);

	CREATE TABLE IF NOT EXISTS enrichment_status (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'pending',
		version INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS connector_schedules (
		connector_id TEXT PRIMARY KEY,
		schedule_expression TEXT NOT NULL DEFAULT '',
		next_fire DATETIME,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS connector_runs (
		id TEXT PRIMARY KEY,
		connector_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		seen INTEGER NOT NULL DEFAULT 0,
		upserted INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_reason TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_connector_runs_connector ON connector_runs(connector_id);
	CREATE INDEX IF NOT EXISTS idx_connector_runs_status ON connector_runs(status);

	CREATE TABLE IF NOT EXISTS connectors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		config TEXT NOT NULL DEFAULT '{}',
		portal_url TEXT NOT NULL DEFAULT '',
		item_url_template TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frpei_requests (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		providers TEXT NOT NULL DEFAULT '[]',
		cached INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frpei_candidates (
		request_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		rank INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (request_id, candidate_id)
	);

	CREATE TABLE IF NOT EXISTS frpei_rank_log (
		request_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		signal TEXT NOT NULL,
		weight REAL NOT NULL,
		value REAL NOT NULL,
		contribution REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frpei_feedback (
		query TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		label TEXT NOT NULL,
		user_pubkey TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frpei_candidates_request ON frpei_candidates(request_id);
	CREATE INDEX IF NOT EXISTS idx_frpei_rank_log_request ON frpei_rank_log(request_id, candidate_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

func marshalStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func marshalAttributes(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalAttributes(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// Upsert writes a document, reporting whether it was newly created.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	now := doc.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = now
	}

	var existed int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, doc.ID).Scan(&existed); err != nil {
		return false, fmt.Errorf("check existing document: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, source_id, external_id, title, content, url, document_type,
			created_at, updated_at, indexed_at, last_modified,
			attributes, permission_groups, tags, quality_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id=excluded.source_id, external_id=excluded.external_id,
			title=excluded.title, content=excluded.content, url=excluded.url,
			document_type=excluded.document_type, updated_at=excluded.updated_at,
			indexed_at=excluded.indexed_at, last_modified=excluded.last_modified,
			attributes=excluded.attributes, permission_groups=excluded.permission_groups,
			tags=excluded.tags, quality_score=excluded.quality_score
	`,
		doc.ID, doc.SourceID, doc.ExternalID, doc.Title, doc.Content, doc.URL, doc.DocumentType,
		doc.CreatedAt, now, doc.IndexedAt, doc.LastModified,
		marshalAttributes(doc.Attributes), marshalStrings(doc.PermissionGroups), marshalStrings(doc.Tags), doc.QualityScore,
	)
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}
	return existed == 0, nil
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	var d Document
	var attrs, perms, tags string
	if err := row.Scan(
		&d.ID, &d.SourceID, &d.ExternalID, &d.Title, &d.Content, &d.URL, &d.DocumentType,
		&d.CreatedAt, &d.UpdatedAt, &d.IndexedAt, &d.LastModified,
		&attrs, &perms, &tags, &d.QualityScore,
	); err != nil {
		return nil, err
	}
	d.Attributes = unmarshalAttributes(attrs)
	d.PermissionGroups = unmarshalStrings(perms)
	d.Tags = unmarshalStrings(tags)
	return &d, nil
}

const documentColumns = `id, source_id, external_id, title, content, url, document_type,
		created_at, updated_at, indexed_at, last_modified,
		attributes, permission_groups, tags, quality_score`

// Get fetches a single document by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// FetchByIds fetches documents preserving the order of ids.
func (s *SQLiteStore) FetchByIds(ctx context.Context, ids []string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id IN (%s)`, documentColumns, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc)
		}
	}
	return ordered, nil
}

// Delete removes a document by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// DeleteBySource removes documents for sourceID not present in keepExternalIDs.
func (s *SQLiteStore) DeleteBySource(ctx context.Context, sourceID string, keepExternalIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	if len(keepExternalIDs) == 0 {
		res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source_id = ?`, sourceID)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	placeholders := make([]string, len(keepExternalIDs))
	args := make([]interface{}, 0, len(keepExternalIDs)+1)
	args = append(args, sourceID)
	for i, extID := range keepExternalIDs {
		placeholders[i] = "?"
		args = append(args, extID)
	}
	query := fmt.Sprintf(`DELETE FROM documents WHERE source_id = ? AND external_id NOT IN (%s)`, strings.Join(placeholders, ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListSinceForSource returns (external_id -> last_modified) for a source's documents.
func (s *SQLiteStore) ListSinceForSource(ctx context.Context, sourceID string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT external_id, last_modified FROM documents WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var extID string
		var lastModified time.Time
		if err := rows.Scan(&extID, &lastModified); err != nil {
			return nil, err
		}
		out[extID] = lastModified
	}
	return out, rows.Err()
}

// Query returns documents matching filter, paginated by an opaque cursor
// (the last-seen document id, since rows are ordered by id).
func (s *SQLiteStore) Query(ctx context.Context, filter FilterExpr, cursor string, limit int) ([]*Document, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []interface{}

	if cursor != "" {
		where = append(where, "id > ?")
		args = append(args, cursor)
	}
	if len(filter.DocumentTypes) > 0 {
		where = append(where, inClause("document_type", len(filter.DocumentTypes)))
		for _, t := range filter.DocumentTypes {
			args = append(args, t)
		}
	}
	if len(filter.SourceIDs) > 0 {
		where = append(where, inClause("source_id", len(filter.SourceIDs)))
		for _, src := range filter.SourceIDs {
			args = append(args, src)
		}
	}
	if filter.MinQuality > 0 {
		where = append(where, "quality_score >= ?")
		args = append(args, filter.MinQuality)
	}
	if !filter.CreatedAfter.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedAfter)
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.CreatedBefore)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, "", err
		}
		// Tag and permission predicates are not expressible as simple SQL
		// IN/equality against a JSON column, so they are applied in memory
		// against the already-narrowed SQL result.
		if len(filter.TagsAny) > 0 || len(filter.TagsAll) > 0 || len(doc.PermissionGroups) > 0 {
			memFilter := filter
			memFilter.DocumentTypes = nil
			memFilter.SourceIDs = nil
			memFilter.MinQuality = 0
			memFilter.CreatedAfter = time.Time{}
			memFilter.CreatedBefore = time.Time{}
			if !memFilter.Matches(doc) {
				continue
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(docs) > limit {
		nextCursor = docs[limit-1].ID
		docs = docs[:limit]
	}
	return docs, nextCursor, nil
}

func inClause(column string, n int) string {
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// SaveEmbedding persists a document's embedding independent of its row.
func (s *SQLiteStore) SaveEmbedding(ctx context.Context, id string, embedding []float32, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (doc_id, vector, model) VALUES (?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET vector=excluded.vector, model=excluded.model
	`, id, encodeVector(embedding), model)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE documents SET indexed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// GetAllEmbeddings returns every stored embedding. No HNSW rebuild or
// compaction calls it.
func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]float32{}
	for rows.Next() {
		var id string
		var buf []byte
		if err := rows.Scan(&id, &buf); err != nil {
			return nil, err
		}
		out[id] = decodeVector(buf)
	}
	return out, rows.Err()
}

// GetEmbeddingStats reports how many documents have/lack an embedding.
func (s *SQLiteStore) GetEmbeddingStats(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, 0, fmt.Errorf("store is closed")
	}

	var total, withEmbedding int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&withEmbedding); err != nil {
		return 0, 0, err
	}
	return withEmbedding, total - withEmbedding, nil
}

// GetState fetches a value from the generic key-value state table.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetState writes a value to the generic key-value state table.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}

// SaveRunCheckpoint persists connector-run progress for resume.
func (s *SQLiteStore) SaveRunCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	if err := s.SetState(ctx, StateKeyCheckpointStage, stage); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointTotal, fmt.Sprintf("%d", total)); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointEmbedded, fmt.Sprintf("%d", embeddedCount)); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointTimestamp, time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.SetState(ctx, StateKeyCheckpointEmbedderModel, embedderModel)
}

// LoadRunCheckpoint reads back the last saved checkpoint, if any.
func (s *SQLiteStore) LoadRunCheckpoint(ctx context.Context) (*RunCheckpoint, error) {
	stage, err := s.GetState(ctx, StateKeyCheckpointStage)
	if err != nil {
		return nil, err
	}
	if stage == "" {
		return nil, nil
	}

	var cp RunCheckpoint
	cp.Stage = stage
	if total, err := s.GetState(ctx, StateKeyCheckpointTotal); err == nil {
		fmt.Sscanf(total, "%d", &cp.Total)
	}
	if embedded, err := s.GetState(ctx, StateKeyCheckpointEmbedded); err == nil {
		fmt.Sscanf(embedded, "%d", &cp.EmbeddedCount)
	}
	if ts, err := s.GetState(ctx, StateKeyCheckpointTimestamp); err == nil && ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			cp.Timestamp = parsed
		}
	}
	cp.EmbedderModel, _ = s.GetState(ctx, StateKeyCheckpointEmbedderModel)
	return &cp, nil
}

// ClearRunCheckpoint removes the saved checkpoint, called on successful run completion.
func (s *SQLiteStore) ClearRunCheckpoint(ctx context.Context) error {
	for _, key := range []string{
		StateKeyCheckpointStage, StateKeyCheckpointTotal, StateKeyCheckpointEmbedded,
		StateKeyCheckpointTimestamp, StateKeyCheckpointEmbedderModel,
	} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// DB returns the underlying database handle so sibling stores
// (webhook.SQLiteStore, ConnectorStore) can share the same file and
// connection pool instead of opening a second handle onto it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
