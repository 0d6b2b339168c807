// Package router implements the Router / Persister (spec component C5):
// it decides between relational and document backing via the JSON
// Shape Analyzer (C4), synthesizes a content-hash document id, and
// writes the payload to whichever store was chosen before recording the
// authoritative CatalogJson row.
//
// The scored-decision-then-persist shape is adapted from
// entity/matcher.go's evaluateRule → MatchResult{Score, MatchedBy,
// Reason} pattern, here applied to jsonshape.Score's SQL/NoSQL point
// totals instead of entity-resolution confidence.
package router

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/nucleus/ingestcore/pkg/catalog"
	"github.com/nucleus/ingestcore/pkg/ids"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/nucleus/ingestcore/pkg/jsonshape"
	"github.com/nucleus/ingestcore/pkg/tenant"
)

// Router owns the payload stores (relational per-document tables and
// the shared document collection) and coordinates the catalog/usage
// commit that follows a payload write.
type Router struct {
	db      *sql.DB
	catalog *catalog.Store
	guard   *tenant.Guard
}

// New constructs a Router and ensures the shared document collection
// exists. db is the relational database payload writes land in; it may
// be the same handle backing catalogStore.
func New(db *sql.DB, catalogStore *catalog.Store, guard *tenant.Guard) (*Router, error) {
	r := &Router{db: db, catalog: catalogStore, guard: guard}
	if err := r.ensureDocumentSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) ensureDocumentSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS document_payloads (
  id         text PRIMARY KEY,
  tenant_id  text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now(),
  body       jsonb NOT NULL,
  tag_set    text[] DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS document_payloads_tenant_created_idx ON document_payloads (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS document_payloads_tags_idx ON document_payloads USING gin (tag_set);
`
	if _, err := r.db.Exec(ddl); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "ensure document payload schema", err)
	}
	return nil
}

// Decision is the outcome of the routing analysis, returned alongside
// the persisted CatalogJson so callers (and tests) can inspect the
// reasoning without re-running the analyzer.
type Decision struct {
	Backing    string
	Confidence float64
	Reasons    []string
}

// IngestJson implements spec.md §4.5's ingestJson operation.
func (r *Router) IngestJson(ctx context.Context, tenantID string, tree any, tags []string) (*catalog.CatalogJson, Decision, error) {
	jv := jsonshape.FromAny(tree)
	metrics := jsonshape.Analyze(jv)
	score := jsonshape.Evaluate(metrics)

	canonical, err := canonicalize(tree)
	if err != nil {
		return nil, Decision{}, ingesterr.Wrap(ingesterr.Validation, "canonicalize json document", err)
	}
	hash := sha256.Sum256(canonical)
	docID := ids.DocumentID(time.Now().UTC().Unix(), hex.EncodeToString(hash[:]))

	token, err := r.guard.Admit(ctx, tenantID, int64(len(canonical)))
	if err != nil {
		return nil, Decision{}, err
	}

	switch score.Backing {
	case "relational":
		if err := r.writeRelational(ctx, docID, tenantID, tree); err != nil {
			_ = r.guard.Release(token)
			return nil, Decision{}, err
		}
	default:
		if err := r.writeDocument(ctx, docID, tenantID, tree, tags); err != nil {
			_ = r.guard.Release(token)
			return nil, Decision{}, err
		}
	}

	metricsBlob := map[string]any{
		"maxDepth":              metrics.MaxDepth,
		"totalObjects":          metrics.TotalObjects,
		"uniqueFields":          metrics.UniqueFields,
		"totalFieldOccurrences": metrics.TotalFieldOccurrences,
		"schemaConsistency":     metrics.SchemaConsistency,
		"typeConsistency":       metrics.TypeConsistency,
		"hasNestedArrays":       metrics.HasNestedArrays,
		"hasMixedTypes":         metrics.HasMixedTypes,
		"sqlScore":              score.SQLScore,
		"noSqlScore":            score.NoSQLScore,
		"reasons":               score.Reasons,
	}
	entry := catalog.CatalogJson{
		ID:         docID,
		TenantID:   tenantID,
		Backing:    score.Backing,
		Confidence: score.Confidence,
		CreatedAt:  time.Now().UTC(),
		Metrics:    metricsBlob,
		Tags:       tags,
	}

	// The payload write above and this catalog+usage commit are
	// deliberately not coordinated in one cross-store transaction per
	// spec.md §4.5; an orphaned payload with no catalog row is the
	// background reconciler's job to find and drop.
	tx, err := r.catalog.BeginTx(ctx)
	if err != nil {
		_ = r.guard.Release(token)
		return nil, Decision{}, err
	}
	defer tx.Rollback()

	if err := r.catalog.InsertJsonTx(ctx, tx, entry); err != nil {
		_ = r.guard.Release(token)
		return nil, Decision{}, err
	}
	if err := r.guard.CommitTx(ctx, tx, token, int64(len(canonical))); err != nil {
		return nil, Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return nil, Decision{}, ingesterr.Wrap(ingesterr.StoreUnavailable, "commit json ingest transaction", err)
	}

	return &entry, Decision{Backing: score.Backing, Confidence: score.Confidence, Reasons: score.Reasons}, nil
}

// writeRelational implements spec.md §4.5 step 4: a dedicated
// payload_<id> table, a value-index on body, an equality index on
// tenant_id, and one row per array element (or a single row for a
// non-array top level).
func (r *Router) writeRelational(ctx context.Context, docID, tenantID string, tree any) error {
	table := pq.QuoteIdentifier(fmt.Sprintf("payload_%s", docID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "begin relational payload transaction", err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf(`
CREATE TABLE %s (
  row_id     bigserial PRIMARY KEY,
  tenant_id  text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now(),
  body       jsonb NOT NULL
);
CREATE INDEX %s ON %s USING gin (body);
CREATE INDEX %s ON %s (tenant_id);
`,
		table,
		pq.QuoteIdentifier(fmt.Sprintf("payload_%s_body_idx", docID)), table,
		pq.QuoteIdentifier(fmt.Sprintf("payload_%s_tenant_idx", docID)), table,
	)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "create relational payload table", err)
	}

	rows := []any{tree}
	if arr, ok := tree.([]any); ok {
		rows = arr
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s (tenant_id, body) VALUES ($1, $2)`, table)
	for _, row := range rows {
		body, err := json.Marshal(row)
		if err != nil {
			return ingesterr.Wrap(ingesterr.Internal, "marshal relational payload row", err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, tenantID, body); err != nil {
			return ingesterr.Wrap(ingesterr.StoreUnavailable, "insert relational payload row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "commit relational payload transaction", err)
	}
	return nil
}

// writeDocument implements spec.md §4.5 step 5: upsert the verbatim
// document into the shared collection.
func (r *Router) writeDocument(ctx context.Context, docID, tenantID string, tree any, tags []string) error {
	body, err := json.Marshal(tree)
	if err != nil {
		return ingesterr.Wrap(ingesterr.Internal, "marshal document payload", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_payloads (id, tenant_id, body, tag_set) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, tag_set = EXCLUDED.tag_set
`, docID, tenantID, body, pq.Array(tags))
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "upsert document payload", err)
	}
	return nil
}

// DeleteRelational drops a document's dedicated payload table, used by
// the reconciler's orphan sweep.
func (r *Router) DeleteRelational(ctx context.Context, docID string) error {
	table := pq.QuoteIdentifier(fmt.Sprintf("payload_%s", docID))
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "drop relational payload table", err)
	}
	return nil
}

// DeleteDocument removes one row from the shared document collection.
func (r *Router) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_payloads WHERE id = $1`, docID); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "delete document payload", err)
	}
	return nil
}

// ListRelationalPayloadIDs and ListDocumentIDs back the reconciler's
// orphan scan (spec.md §4.5/§7): every payload_<id> table and every
// document_payloads row, regardless of whether a CatalogJson row still
// references it.
func (r *Router) ListRelationalPayloadIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND tablename LIKE 'payload\_doc\_%' ESCAPE '\'
`)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "list relational payload tables", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "scan relational payload table name", err)
		}
		ids = append(ids, table[len("payload_"):])
	}
	return ids, rows.Err()
}

func (r *Router) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM document_payloads`)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "list document payload ids", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "scan document payload id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// canonicalize produces a stable-key-order UTF-8 JSON encoding of an
// arbitrary decoded JSON tree, per spec.md §4.5 step 2.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, keyBytes...)
			out = append(out, ':')
			valBytes, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, valBytes...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte{'['}
		for i, elem := range val {
			if i > 0 {
				out = append(out, ',')
			}
			elemBytes, err := canonicalize(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, elemBytes...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}
