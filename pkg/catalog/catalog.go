// Package catalog implements the Catalog Store (spec component C12):
// the authoritative relational tables for file and JSON descriptors and
// the query log, so tenant checks and cross-entity joins are atomic.
//
// Schema setup follows store-core's ensureSchema-on-construct idiom
// (entity.PostgresEntityRegistry.ensureSchema, kvstore.ensureTable):
// CREATE TABLE/INDEX IF NOT EXISTS run unconditionally at Open time.
//
// The chunk table spec.md §4.12 lists alongside catalog_file/catalog_json
// is deliberately not duplicated here: pkg/vectorindex's chunk_vectors
// table already carries every column §4.12 asks of `chunk` (source file,
// tenant, ordinal, text, vector, meta) plus the required unique index on
// (source_file_id, ordinal) and the ANN index on the vector column, so it
// serves as that table. Splitting chunk storage across two physical
// tables would mean dual-writing every chunk and reconciling their
// consistency for no benefit; see DESIGN.md.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// CatalogFile is the authoritative descriptor for a stored binary
// artifact, per spec.md §3.
type CatalogFile struct {
	ID            string
	TenantID      string
	OriginalName  string
	Category      string
	MimeType      string
	SizeBytes     int64
	SHA256        string
	CanonicalPath string
	CreatedAt     time.Time
	Indexed       bool
	Thumbs        map[string]string // variant name -> relative path
}

// CatalogJson is the authoritative descriptor for a routed JSON
// document, per spec.md §3.
type CatalogJson struct {
	ID         string
	TenantID   string
	Backing    string // "relational" or "document"
	Confidence float64
	CreatedAt  time.Time
	Metrics    map[string]any
	Tags       []string
}

// Store is backed by Postgres.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and ensures schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "open catalog store connection", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return OpenFromDB(db)
}

// OpenFromDB reuses an existing *sql.DB.
func OpenFromDB(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, ingesterr.New(ingesterr.Internal, "catalog store requires a database handle")
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS catalog_file (
  id             text PRIMARY KEY,
  tenant_id      text NOT NULL,
  original_name  text NOT NULL,
  category       text NOT NULL,
  mime_type      text NOT NULL,
  size_bytes     bigint NOT NULL,
  sha256         text NOT NULL,
  canonical_path text NOT NULL,
  created_at     timestamptz NOT NULL DEFAULT now(),
  indexed        boolean NOT NULL DEFAULT false,
  thumbs_json    jsonb
);
CREATE INDEX IF NOT EXISTS catalog_file_tenant_created_idx ON catalog_file (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS catalog_file_category_idx ON catalog_file (category);
CREATE UNIQUE INDEX IF NOT EXISTS catalog_file_tenant_sha256_idx ON catalog_file (tenant_id, sha256);

CREATE TABLE IF NOT EXISTS catalog_json (
  id           text PRIMARY KEY,
  tenant_id    text NOT NULL,
  backing      text NOT NULL,
  confidence   double precision NOT NULL,
  metrics_json jsonb,
  tags         text[] DEFAULT '{}',
  created_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS catalog_json_tenant_created_idx ON catalog_json (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS query_log (
  id           bigserial PRIMARY KEY,
  tenant_id    text NOT NULL,
  query_text   text NOT NULL,
  vector       real[],
  created_at   timestamptz NOT NULL DEFAULT now(),
  result_count integer NOT NULL
);
CREATE INDEX IF NOT EXISTS query_log_tenant_created_idx ON query_log (tenant_id, created_at DESC);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "ensure catalog schema", err)
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

// BeginTx starts a transaction against the catalog database, letting
// callers (notably pkg/media) fold the CatalogFile insert and the
// tenant usage update into spec.md §4.3's "one transactional unit".
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "begin catalog transaction", err)
	}
	return tx, nil
}

// InsertFile inserts a new CatalogFile row. Callers are responsible for
// doing this inside the same transaction as the tenant usage update,
// per spec.md §4.3 step "Insert the CatalogFile row and update tenant
// usage in one transactional unit" — InsertFileTx exposes the tx variant.
func (s *Store) InsertFile(ctx context.Context, f CatalogFile) error {
	return s.InsertFileTx(ctx, s.db, f)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InsertFileTx inserts a CatalogFile row using the given execer, so
// callers can include it in a larger transaction.
func (s *Store) InsertFileTx(ctx context.Context, tx execer, f CatalogFile) error {
	thumbsJSON, err := json.Marshal(f.Thumbs)
	if err != nil {
		return ingesterr.Wrap(ingesterr.Internal, "marshal thumbnail descriptors", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO catalog_file (id, tenant_id, original_name, category, mime_type, size_bytes, sha256, canonical_path, created_at, indexed, thumbs_json)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, f.ID, f.TenantID, f.OriginalName, f.Category, f.MimeType, f.SizeBytes, f.SHA256, f.CanonicalPath, f.CreatedAt, f.Indexed, thumbsJSON)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "insert catalog file", err)
	}
	return nil
}

// MarkIndexed flips CatalogFile.indexed to true, the only mutation
// spec.md §3 permits outside of delete.
func (s *Store) MarkIndexed(ctx context.Context, tenantID, fileID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE catalog_file SET indexed = true WHERE tenant_id = $1 AND id = $2`, tenantID, fileID)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "mark catalog file indexed", err)
	}
	return nil
}

// GetFile fetches one CatalogFile scoped to tenantID.
func (s *Store) GetFile(ctx context.Context, tenantID, fileID string) (*CatalogFile, error) {
	var f CatalogFile
	var thumbsJSON []byte
	err := s.db.QueryRowContext(ctx, `
SELECT id, tenant_id, original_name, category, mime_type, size_bytes, sha256, canonical_path, created_at, indexed, thumbs_json
FROM catalog_file WHERE tenant_id = $1 AND id = $2
`, tenantID, fileID).Scan(&f.ID, &f.TenantID, &f.OriginalName, &f.Category, &f.MimeType, &f.SizeBytes, &f.SHA256, &f.CanonicalPath, &f.CreatedAt, &f.Indexed, &thumbsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingesterr.New(ingesterr.Validation, "catalog file not found")
	}
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "read catalog file", err)
	}
	if len(thumbsJSON) > 0 {
		_ = json.Unmarshal(thumbsJSON, &f.Thumbs)
	}
	return &f, nil
}

// FindBySHA256 supports the optional per-tenant de-duplication hook in
// spec.md §4.12's index list.
func (s *Store) FindBySHA256(ctx context.Context, tenantID, sha256 string) (*CatalogFile, error) {
	f, err := s.GetFileBySHA256(ctx, tenantID, sha256)
	if err != nil && ingesterr.KindOf(err) == ingesterr.Validation {
		return nil, nil
	}
	return f, err
}

// GetFileBySHA256 is FindBySHA256 without the not-found-to-nil mapping.
func (s *Store) GetFileBySHA256(ctx context.Context, tenantID, sha256 string) (*CatalogFile, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM catalog_file WHERE tenant_id = $1 AND sha256 = $2`, tenantID, sha256).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingesterr.New(ingesterr.Validation, "catalog file not found")
	}
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "read catalog file by sha256", err)
	}
	return s.GetFile(ctx, tenantID, id)
}

// DeleteFile removes a CatalogFile row, returning its size in bytes so
// the caller can reclaim tenant usage.
func (s *Store) DeleteFile(ctx context.Context, tenantID, fileID string) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `DELETE FROM catalog_file WHERE tenant_id = $1 AND id = $2 RETURNING size_bytes`, tenantID, fileID).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ingesterr.New(ingesterr.Validation, "catalog file not found")
	}
	if err != nil {
		return 0, ingesterr.Wrap(ingesterr.StoreUnavailable, "delete catalog file", err)
	}
	return size, nil
}

// InsertJson inserts a new CatalogJson row.
func (s *Store) InsertJson(ctx context.Context, j CatalogJson) error {
	return s.InsertJsonTx(ctx, s.db, j)
}

// InsertJsonTx inserts a CatalogJson row using the given execer.
func (s *Store) InsertJsonTx(ctx context.Context, tx execer, j CatalogJson) error {
	metricsJSON, err := json.Marshal(j.Metrics)
	if err != nil {
		return ingesterr.Wrap(ingesterr.Internal, "marshal json metrics", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO catalog_json (id, tenant_id, backing, confidence, metrics_json, tags, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, j.ID, j.TenantID, j.Backing, j.Confidence, metricsJSON, pq.Array(j.Tags), j.CreatedAt)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "insert catalog json", err)
	}
	return nil
}

// GetJson fetches one CatalogJson scoped to tenantID.
func (s *Store) GetJson(ctx context.Context, tenantID, id string) (*CatalogJson, error) {
	var j CatalogJson
	var metricsJSON []byte
	err := s.db.QueryRowContext(ctx, `
SELECT id, tenant_id, backing, confidence, metrics_json, tags, created_at
FROM catalog_json WHERE tenant_id = $1 AND id = $2
`, tenantID, id).Scan(&j.ID, &j.TenantID, &j.Backing, &j.Confidence, &metricsJSON, pq.Array(&j.Tags), &j.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingesterr.New(ingesterr.Validation, "catalog json not found")
	}
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "read catalog json", err)
	}
	if len(metricsJSON) > 0 {
		_ = json.Unmarshal(metricsJSON, &j.Metrics)
	}
	return &j, nil
}

// JsonExists reports whether a CatalogJson row exists for id, across any
// tenant. Unlike GetJson this is tenant-agnostic: it backs the
// reconciler's orphan sweep, which walks payload stores that are not
// naturally partitioned by tenant at scan time.
func (s *Store) JsonExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM catalog_json WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, ingesterr.Wrap(ingesterr.StoreUnavailable, "check catalog json existence", err)
	}
	return exists, nil
}

// DeleteJson removes a CatalogJson row.
func (s *Store) DeleteJson(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_json WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "delete catalog json", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ingesterr.New(ingesterr.Validation, "catalog json not found")
	}
	return nil
}

// LogQuery implements retrieval.QueryLogger, writing an append-only
// query_log row per spec.md §3/§4.10.
func (s *Store) LogQuery(ctx context.Context, tenantID, text string, vector []float32, resultCount int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO query_log (tenant_id, query_text, vector, result_count) VALUES ($1,$2,$3,$4)
`, tenantID, text, pq.Array(vector), resultCount)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "insert query log", err)
	}
	return nil
}
