// Package vectorindex implements the Vector Index & Search component
// (spec C8): atomic per-source chunk writes and kNN search with
// category/sourceFileId filters.
//
// Adapted directly from store-core's vectorstore/pgvector_store.go
// (ensureTables DDL style, toVectorLiteral encoding, dynamic WHERE
// builder), reshaped from the teacher's (profile_id, node_id) entries to
// this spec's (source_file_id, ordinal) chunks and from cosine (<=>) to
// L2 (<->) distance per spec.md §4.8.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// Chunk is the write-path record for one chunk of embedded text.
type Chunk struct {
	TenantID     string
	SourceFileID string
	Category     string
	Ordinal      int
	Text         string
	Embedding    []float32
	Meta         map[string]any
}

// Hit is one kNN search result, per spec.md §4.8.
type Hit struct {
	SourceFileID string
	Ordinal      int
	Text         string
	Meta         map[string]any
	Distance     float64
}

// Filter restricts a kNN query to a set of categories and/or source files.
type Filter struct {
	Categories    []string
	SourceFileIDs []string
}

// Store is backed by Postgres + pgvector.
type Store struct {
	db        *sql.DB
	dimension int
}

// Open connects to dsn and ensures the chunk_vectors table exists.
func Open(dsn string, dimension int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "open vector store connection", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return OpenFromDB(db, dimension)
}

// OpenFromDB reuses an existing *sql.DB.
func OpenFromDB(db *sql.DB, dimension int) (*Store, error) {
	if db == nil {
		return nil, ingesterr.New(ingesterr.Internal, "vector store requires a database handle")
	}
	if dimension <= 0 {
		return nil, ingesterr.New(ingesterr.Internal, "vector store dimension must be positive")
	}
	s := &Store{db: db, dimension: dimension}
	if err := s.ensureTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTables() error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_vectors (
  tenant_id      text NOT NULL,
  source_file_id text NOT NULL,
  category       text NOT NULL,
  ordinal        integer NOT NULL,
  content_text   text NOT NULL,
  meta           jsonb,
  embedding      vector(%d),
  created_at     timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (source_file_id, ordinal)
);
CREATE INDEX IF NOT EXISTS chunk_vectors_tenant_idx ON chunk_vectors (tenant_id);
CREATE INDEX IF NOT EXISTS chunk_vectors_category_idx ON chunk_vectors (category);
CREATE INDEX IF NOT EXISTS chunk_vectors_embedding_idx ON chunk_vectors USING ivfflat (embedding vector_l2_ops) WITH (lists = 100);
`, s.dimension)
	if _, err := s.db.Exec(ddl); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "ensure vector index schema", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreChunks writes all chunks for one source atomically, per spec.md
// §4.8/§5 (all-or-nothing per-source batch). It first deletes any
// existing rows for sourceFileID so a reindex replaces the prior set.
// Writes for the same sourceFileID are serialized by a transaction-scoped
// advisory lock.
func (s *Store) StoreChunks(ctx context.Context, sourceFileID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "begin chunk write transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sourceFileID); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "lock source for chunk write", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE source_file_id = $1`, sourceFileID); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "clear prior chunk vectors", err)
	}

	stmt := `
INSERT INTO chunk_vectors (tenant_id, source_file_id, category, ordinal, content_text, meta, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (source_file_id, ordinal) DO UPDATE SET
  tenant_id=EXCLUDED.tenant_id,
  category=EXCLUDED.category,
  content_text=EXCLUDED.content_text,
  meta=EXCLUDED.meta,
  embedding=EXCLUDED.embedding;
`
	for _, c := range chunks {
		metaBytes, _ := json.Marshal(c.Meta)
		embLit, err := toVectorLiteral(c.Embedding, s.dimension)
		if err != nil {
			return ingesterr.Wrap(ingesterr.Internal, "encode chunk embedding", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, c.TenantID, c.SourceFileID, c.Category, c.Ordinal, c.Text, metaBytes, embLit); err != nil {
			return ingesterr.Wrap(ingesterr.StoreUnavailable, "write chunk vector", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "commit chunk write transaction", err)
	}
	return nil
}

// DeleteSource removes all chunk vectors for a source file, used by
// tenant-scoped delete.
func (s *Store) DeleteSource(ctx context.Context, sourceFileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE source_file_id = $1`, sourceFileID); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "delete chunk vectors", err)
	}
	return nil
}

// KNN performs an L2 nearest-neighbor query, per spec.md §4.8: results
// ascend by distance, ties broken by (sourceFileId, ordinal).
func (s *Store) KNN(ctx context.Context, tenantID string, query []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	embLit, err := toVectorLiteral(query, s.dimension)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.Internal, "encode query embedding", err)
	}

	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	argIdx := 2
	if len(filter.Categories) > 0 {
		where = append(where, fmt.Sprintf("category = ANY($%d)", argIdx))
		args = append(args, pq.Array(filter.Categories))
		argIdx++
	}
	if len(filter.SourceFileIDs) > 0 {
		where = append(where, fmt.Sprintf("source_file_id = ANY($%d)", argIdx))
		args = append(args, pq.Array(filter.SourceFileIDs))
		argIdx++
	}
	whereSQL := strings.Join(where, " AND ")

	query2 := fmt.Sprintf(`
SELECT source_file_id, ordinal, content_text, meta, embedding <-> %s AS distance
FROM chunk_vectors
WHERE %s
ORDER BY distance ASC, source_file_id ASC, ordinal ASC
LIMIT %d;
`, embLit, whereSQL, topK)

	rows, err := s.db.QueryContext(ctx, query2, args...)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "query vector index", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var metaBytes []byte
		if err := rows.Scan(&h.SourceFileID, &h.Ordinal, &h.Text, &metaBytes, &h.Distance); err != nil {
			return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "scan vector index result", err)
		}
		_ = json.Unmarshal(metaBytes, &h.Meta)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "iterate vector index results", err)
	}
	return hits, nil
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", fmt.Errorf("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
