package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql dialect
	_ "github.com/lib/pq"              // postgres dialect
	_ "github.com/microsoft/go-mssqldb" // mssql dialect, registers as "sqlserver"
	_ "modernc.org/sqlite"              // sqlite dialect, default

	"github.com/federails/corequery/internal/store"
)

// Dialect names a registered database/sql driver a SQLConnector can open.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectMSSQL    Dialect = "mssql"
)

var dialectDrivers = map[Dialect]string{
	DialectSQLite:   "sqlite",
	DialectPostgres: "postgres",
	DialectMySQL:    "mysql",
	DialectMSSQL:    "sqlserver",
}

// idBatchSize caps how many ids one data_query IN-list carries; larger
// diffs are fetched in pages (spec.md §4.5 step 4).
const idBatchSize = 1000

// SQLConnector syncs an arbitrary relational source via the two-query
// metadata-first protocol of spec.md §4.5: a cheap metadata_query lists
// (external_id, last_modified) for every row, the listing is left-joined
// in memory against the index's state, and only added/updated ids are
// batch-fetched through data_query's {IDS} IN-list. An optional
// permission_query ({USER}) attaches group tokens to permission_groups,
// and portal_url + item_url_template resolve each row's deep link by
// {field_name} substitution.
type SQLConnector struct {
	openDB func(dialect Dialect, dsn string) (*sql.DB, error)

	mu      sync.Mutex
	stopped bool
}

// NewSQLConnector creates a connector using database/sql with the
// registered dialect drivers.
func NewSQLConnector() *SQLConnector {
	return &SQLConnector{openDB: openSQLDialect}
}

func openSQLDialect(dialect Dialect, dsn string) (*sql.DB, error) {
	driver, ok := dialectDrivers[dialect]
	if !ok {
		return nil, fmt.Errorf("sql connector: unknown dialect %q", dialect)
	}
	return sql.Open(driver, dsn)
}

// ValidateConfig requires dialect, dsn, the metadata/data query pair and
// id_column; data_query must carry the {IDS} placeholder the batch fetch
// expands, and permission_query (when set) must carry {USER}.
func (c *SQLConnector) ValidateConfig(cfg map[string]string) error {
	if _, ok := dialectDrivers[Dialect(cfg["dialect"])]; !ok {
		return fmt.Errorf("sql connector: unsupported dialect %q", cfg["dialect"])
	}
	if strings.TrimSpace(cfg["dsn"]) == "" {
		return fmt.Errorf("sql connector: dsn is required")
	}
	if strings.TrimSpace(cfg["metadata_query"]) == "" {
		return fmt.Errorf("sql connector: metadata_query is required")
	}
	if strings.TrimSpace(cfg["data_query"]) == "" {
		return fmt.Errorf("sql connector: data_query is required")
	}
	if !strings.Contains(cfg["data_query"], "{IDS}") {
		return fmt.Errorf("sql connector: data_query must contain the {IDS} placeholder")
	}
	if pq := cfg["permission_query"]; pq != "" && !strings.Contains(pq, "{USER}") {
		return fmt.Errorf("sql connector: permission_query must contain the {USER} placeholder")
	}
	if strings.TrimSpace(cfg["id_column"]) == "" {
		return fmt.Errorf("sql connector: id_column is required")
	}
	return nil
}

// Run executes the incremental sync: list (external_id, last_modified)
// via metadata_query, diff against the sink's index state, keep the
// unchanged ids, batch-fetch added ∪ updated through data_query, and Put
// one Document per fetched row.
func (c *SQLConnector) Run(ctx context.Context, cfg map[string]string, sink Sink) (*RunStats, error) {
	stats := &RunStats{SourceID: cfg["source_id"], StartedAt: time.Now()}

	db, err := c.openDB(Dialect(cfg["dialect"]), cfg["dsn"])
	if err != nil {
		return stats, fmt.Errorf("open dialect %s: %w", cfg["dialect"], err)
	}
	defer func() { _ = db.Close() }()

	queryCtx, cancel := c.queryContext(ctx, cfg)
	defer cancel()

	sourceMeta, sourceOrder, err := c.listSourceMetadata(queryCtx, db, cfg["metadata_query"])
	if err != nil {
		return stats, fmt.Errorf("metadata query: %w", err)
	}
	stats.Seen = len(sourceOrder)

	indexMeta := map[string]time.Time{}
	if stater, ok := sink.(IndexStater); ok {
		indexMeta = stater.IndexState()
	}

	// Left-join in memory (spec.md §4.5 step 3): added = source - index,
	// updated = source ∩ index where last_modified differs. Unchanged rows
	// are kept so the sink's delete sweep retains them; removed = index -
	// source falls out of that sweep.
	var fetchIDs []string
	addedSet := make(map[string]bool)
	keeper, _ := sink.(Keeper)
	for _, id := range sourceOrder {
		last, known := indexMeta[id]
		switch {
		case !known:
			addedSet[id] = true
			fetchIDs = append(fetchIDs, id)
		case !sourceMeta[id].Equal(last):
			fetchIDs = append(fetchIDs, id)
		case keeper != nil:
			keeper.Keep(id)
		}
	}

	perms, err := c.loadPermissions(queryCtx, db, cfg)
	if err != nil {
		return stats, fmt.Errorf("permission query: %w", err)
	}

	dialect := Dialect(cfg["dialect"])
	mapping := columnMapping{
		id:       cfg["id_column"],
		title:    cfg["title_column"],
		content:  cfg["content_column"],
		url:      cfg["url_column"],
		modified: cfg["modified_column"],
	}

	for start := 0; start < len(fetchIDs); start += idBatchSize {
		if c.isStopped() {
			break
		}
		end := start + idBatchSize
		if end > len(fetchIDs) {
			end = len(fetchIDs)
		}
		batch := fetchIDs[start:end]

		if err := c.fetchBatch(queryCtx, db, dialect, cfg, mapping, batch, sourceMeta, addedSet, perms, sink, stats); err != nil {
			stats.record(err)
		}
	}

	stats.FinishedAt = time.Now()
	return stats, nil
}

// listSourceMetadata runs metadata_query and reads its first two columns
// as (external_id, last_modified), the cheap listing of step 1.
func (c *SQLConnector) listSourceMetadata(ctx context.Context, db *sql.DB, query string) (map[string]time.Time, []string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]time.Time)
	var order []string
	for rows.Next() {
		var id, modified any
		if err := rows.Scan(&id, &modified); err != nil {
			return nil, nil, fmt.Errorf("scan metadata row: %w", err)
		}
		externalID := asString(id)
		if externalID == "" {
			continue
		}
		if _, dup := meta[externalID]; !dup {
			order = append(order, externalID)
		}
		meta[externalID] = asTime(modified)
	}
	return meta, order, rows.Err()
}

// fetchBatch expands one {IDS} page of data_query, maps each returned row
// to a Document, and Puts it.
func (c *SQLConnector) fetchBatch(
	ctx context.Context,
	db *sql.DB,
	dialect Dialect,
	cfg map[string]string,
	mapping columnMapping,
	ids []string,
	sourceMeta map[string]time.Time,
	addedSet map[string]bool,
	perms *permissionSet,
	sink Sink,
	stats *RunStats,
) error {
	query, args := expandIDsMacro(dialect, cfg["data_query"], ids)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("data query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}

	for rows.Next() {
		if c.isStopped() {
			break
		}

		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			stats.record(fmt.Errorf("scan row: %w", err))
			continue
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}

		doc := rowToDocument(row, mapping, cfg["source_id"])
		if lm, ok := sourceMeta[doc.ExternalID]; ok && mapping.modified == "" {
			doc.LastModified = lm
		}
		if url, err := resolveURLTemplate(cfg["portal_url"], cfg["item_url_template"], row); err == nil {
			doc.URL = url
		}
		doc.PermissionGroups = perms.groupsFor(doc.ExternalID)

		if err := sink.Put(ctx, doc); err != nil {
			stats.record(err)
			continue
		}
		stats.Upserted++
		if addedSet[doc.ExternalID] {
			stats.Created++
		}
	}
	return rows.Err()
}

// queryContext applies the connector's query timeout (spec.md §5, default
// 60s) to every statement the run issues.
func (c *SQLConnector) queryContext(ctx context.Context, cfg map[string]string) (context.Context, context.CancelFunc) {
	timeout := 60 * time.Second
	if raw := cfg["query_timeout"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *SQLConnector) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// permissionSet holds the group tokens permission_query produced: global
// tokens (one-column result) apply to every document, two-column rows
// scope a token to one external id.
type permissionSet struct {
	global []string
	byID   map[string][]string
}

func (p *permissionSet) groupsFor(externalID string) []string {
	if p == nil {
		return nil
	}
	scoped := p.byID[externalID]
	if len(p.global) == 0 {
		return scoped
	}
	out := make([]string, 0, len(p.global)+len(scoped))
	out = append(out, p.global...)
	out = append(out, scoped...)
	return out
}

// loadPermissions runs permission_query with {USER} bound to the
// configured permission_user. A one-column result is a global token
// list; a two-column result is (external_id, group token) per row.
func (c *SQLConnector) loadPermissions(ctx context.Context, db *sql.DB, cfg map[string]string) (*permissionSet, error) {
	queryTemplate := cfg["permission_query"]
	if strings.TrimSpace(queryTemplate) == "" {
		return nil, nil
	}

	query, args := expandUserMacro(Dialect(cfg["dialect"]), queryTemplate, cfg["permission_user"])
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	perms := &permissionSet{byID: make(map[string][]string)}
	for rows.Next() {
		switch len(cols) {
		case 1:
			var group any
			if err := rows.Scan(&group); err != nil {
				return nil, err
			}
			perms.global = append(perms.global, asString(group))
		default:
			var id, group any
			targets := make([]any, len(cols))
			targets[0], targets[1] = &id, &group
			for i := 2; i < len(cols); i++ {
				var discard any
				targets[i] = &discard
			}
			if err := rows.Scan(targets...); err != nil {
				return nil, err
			}
			externalID := asString(id)
			perms.byID[externalID] = append(perms.byID[externalID], asString(group))
		}
	}
	return perms, rows.Err()
}

// placeholder renders the dialect's bind parameter for 1-indexed position n.
func placeholder(dialect Dialect, n int) string {
	switch dialect {
	case DialectPostgres:
		return fmt.Sprintf("$%d", n)
	case DialectMSSQL:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// expandIDsMacro replaces {IDS} with a dialect-appropriate bind
// placeholder list and returns the matching argument slice (spec.md §6:
// macros expand to an in-list before binding, never to literal values).
func expandIDsMacro(dialect Dialect, query string, ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = placeholder(dialect, i+1)
		args[i] = id
	}
	return strings.Replace(query, "{IDS}", strings.Join(placeholders, ", "), 1), args
}

// expandUserMacro replaces {USER} with a single bind placeholder.
func expandUserMacro(dialect Dialect, query string, user string) (string, []any) {
	return strings.Replace(query, "{USER}", placeholder(dialect, 1), 1), []any{user}
}

// resolveURLTemplate joins portal_url and item_url_template, then
// substitutes every {field_name} from the row's columns. A referenced
// field missing from the row rejects the template (spec.md §6).
func resolveURLTemplate(portalURL, itemTemplate string, row map[string]any) (string, error) {
	if itemTemplate == "" {
		return "", fmt.Errorf("no item url template configured")
	}
	template := strings.TrimRight(portalURL, "/") + itemTemplate

	var out strings.Builder
	rest := template
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		field := rest[open+1 : open+closing]
		value, ok := row[field]
		if !ok {
			return "", fmt.Errorf("url template references unknown field %q", field)
		}
		out.WriteString(rest[:open])
		out.WriteString(asString(value))
		rest = rest[open+closing+1:]
	}
}

type columnMapping struct {
	id, title, content, url, modified string
}

func rowToDocument(row map[string]any, m columnMapping, sourceID string) *store.Document {
	doc := &store.Document{
		SourceID:     sourceID,
		ExternalID:   asString(row[m.id]),
		Title:        asString(row[m.title]),
		Content:      asString(row[m.content]),
		URL:          asString(row[m.url]),
		DocumentType: "sql:row",
		LastModified: time.Now(),
	}
	if m.modified != "" {
		doc.LastModified = asTime(row[m.modified])
	}
	return doc
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asTime coerces the driver's representation of a timestamp column;
// string timestamps (SQLite text columns) try the common layouts before
// giving up and stamping now.
func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string, []byte:
		s := asString(t)
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	case int64:
		return time.Unix(t, 0).UTC()
	}
	return time.Now()
}

// Stop halts an in-flight batch fetch once the current row completes.
func (c *SQLConnector) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}
