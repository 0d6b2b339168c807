// Package tenant implements the Tenant & Quota Guard (spec component
// C11): admit/commit/release token lifecycle, streaming quota
// enforcement, and the read-side scope predicate every catalog and
// payload query is filtered through.
//
// The admission re-verification at commit is adapted from
// kvstore.PostgresStore.Put's optimistic version-check transaction
// (read current state, compare, update in one tx), applied here to
// usage_bytes/quota_bytes instead of value/version. The per-tenant
// mutex additionally guards an in-memory reservation count so two
// concurrent admissions cannot jointly overcommit a tenant's quota
// before either one's bytes land in the database.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/nucleus/ingestcore/pkg/ids"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// AdmitToken is the capability returned by Admit; Commit or Release
// must be called exactly once for every token issued.
type AdmitToken struct {
	id            string
	TenantID      string
	ExpectedBytes int64
	issuedAt      time.Time
}

type tenantState struct {
	mu       sync.Mutex
	reserved int64
	pending  map[string]int64 // token id -> reserved bytes
}

// execer is satisfied by both *sql.DB and *sql.Tx, mirroring
// pkg/catalog's execer so CommitTx can share a caller's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scope is the read-side predicate every catalog/payload query must be
// filtered through per spec.md §4.11.
type Scope struct {
	TenantID string
}

// Predicate returns a "tenant_id = $N"-style clause and its argument,
// for callers to splice into a larger WHERE clause at paramIndex.
func (s Scope) Predicate(paramIndex int) (string, any) {
	return sqlPlaceholder(paramIndex), s.TenantID
}

func sqlPlaceholder(paramIndex int) string {
	return "tenant_id = $" + itoa(paramIndex)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Guard is the authoritative tenant usage/quota gate.
type Guard struct {
	db *sql.DB

	mu     sync.Mutex
	states map[string]*tenantState
}

// Open connects to dsn and ensures the tenant table exists.
func Open(dsn string) (*Guard, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "open tenant guard connection", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return OpenFromDB(db)
}

// OpenFromDB reuses an existing *sql.DB.
func OpenFromDB(db *sql.DB) (*Guard, error) {
	if db == nil {
		return nil, ingesterr.New(ingesterr.Internal, "tenant guard requires a database handle")
	}
	g := &Guard{db: db, states: make(map[string]*tenantState)}
	if err := g.ensureSchema(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guard) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tenant (
  id           text PRIMARY KEY,
  quota_bytes  bigint NOT NULL,
  usage_bytes  bigint NOT NULL DEFAULT 0,
  active       boolean NOT NULL DEFAULT true,
  created_at   timestamptz NOT NULL DEFAULT now()
);
`
	if _, err := g.db.Exec(ddl); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "ensure tenant schema", err)
	}
	return nil
}

func (g *Guard) stateFor(tenantID string) *tenantState {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.states[tenantID]
	if !ok {
		s = &tenantState{pending: make(map[string]int64)}
		g.states[tenantID] = s
	}
	return s
}

// Provision upserts a tenant's quota, used by tests and administrative
// tooling. It never changes existing usage.
func (g *Guard) Provision(ctx context.Context, tenantID string, quotaBytes int64) error {
	_, err := g.db.ExecContext(ctx, `
INSERT INTO tenant (id, quota_bytes) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET quota_bytes = EXCLUDED.quota_bytes
`, tenantID, quotaBytes)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "provision tenant", err)
	}
	return nil
}

// Admit reserves expectedBytes against tenantID's quota. The
// reservation is released either by Commit or Release.
func (g *Guard) Admit(ctx context.Context, tenantID string, expectedBytes int64) (*AdmitToken, error) {
	state := g.stateFor(tenantID)
	state.mu.Lock()
	defer state.mu.Unlock()

	var quota, usage int64
	var active bool
	err := g.db.QueryRowContext(ctx, `SELECT quota_bytes, usage_bytes, active FROM tenant WHERE id = $1`, tenantID).
		Scan(&quota, &usage, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingesterr.New(ingesterr.Unauthorized, "unknown tenant")
	}
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "read tenant usage", err)
	}
	if !active {
		return nil, ingesterr.New(ingesterr.Forbidden, "tenant is not active")
	}
	if usage+state.reserved+expectedBytes > quota {
		return nil, ingesterr.New(ingesterr.QuotaExceeded, "admission would exceed tenant quota")
	}

	token := &AdmitToken{id: ids.Rand12(), TenantID: tenantID, ExpectedBytes: expectedBytes, issuedAt: time.Now()}
	state.reserved += expectedBytes
	state.pending[token.id] = expectedBytes
	return token, nil
}

// CheckStreaming performs a lightweight, non-reserving re-check used
// while a byte stream is still being read, so ingestion can abort with
// QuotaExceeded as soon as cumulative usage would cross the quota
// rather than only at the end of the stream (spec.md §4.3's "streaming
// enforcement, not post-hoc").
func (g *Guard) CheckStreaming(ctx context.Context, tenantID string, cumulativeBytes int64) error {
	state := g.stateFor(tenantID)
	state.mu.Lock()
	reserved := state.reserved
	state.mu.Unlock()

	var quota, usage int64
	var active bool
	err := g.db.QueryRowContext(ctx, `SELECT quota_bytes, usage_bytes, active FROM tenant WHERE id = $1`, tenantID).
		Scan(&quota, &usage, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return ingesterr.New(ingesterr.Unauthorized, "unknown tenant")
	}
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "read tenant usage", err)
	}
	if !active {
		return ingesterr.New(ingesterr.Forbidden, "tenant is not active")
	}
	if usage+reserved+cumulativeBytes > quota {
		return ingesterr.New(ingesterr.QuotaExceeded, "streamed bytes would exceed tenant quota")
	}
	return nil
}

// Commit re-verifies the quota against actualBytes and atomically
// updates usage, per spec.md §5's "re-verified on commit" rule. The
// token's reservation is released regardless of outcome.
func (g *Guard) Commit(ctx context.Context, token *AdmitToken, actualBytes int64) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "begin quota commit transaction", err)
	}
	defer tx.Rollback()

	if err := g.CommitTx(ctx, tx, token, actualBytes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "commit quota transaction", err)
	}
	return nil
}

// CommitTx is Commit using a caller-supplied transaction, so the usage
// update can be folded into a larger transaction — spec.md §4.3's
// requirement that the CatalogFile insert and the tenant usage update
// happen "in one transactional unit". The reservation bookkeeping is
// cleared immediately regardless of whether the caller's outer
// transaction is ultimately committed or rolled back, matching Commit's
// own behavior.
func (g *Guard) CommitTx(ctx context.Context, tx execer, token *AdmitToken, actualBytes int64) error {
	if token == nil {
		return ingesterr.New(ingesterr.Internal, "commit requires a non-nil admit token")
	}
	state := g.stateFor(token.TenantID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.pending[token.id]; !ok {
		return ingesterr.New(ingesterr.Internal, "admit token already finalized")
	}
	delete(state.pending, token.id)
	state.reserved -= token.ExpectedBytes

	var quota, usage int64
	if err := tx.QueryRowContext(ctx, `SELECT quota_bytes, usage_bytes FROM tenant WHERE id = $1 FOR UPDATE`, token.TenantID).
		Scan(&quota, &usage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ingesterr.New(ingesterr.Unauthorized, "unknown tenant")
		}
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "read tenant usage for commit", err)
	}
	if usage+actualBytes > quota {
		return ingesterr.New(ingesterr.QuotaExceeded, "commit would exceed tenant quota")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tenant SET usage_bytes = usage_bytes + $1 WHERE id = $2`, actualBytes, token.TenantID); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "update tenant usage", err)
	}
	return nil
}

// Release discards a reservation without touching committed usage, for
// the abort/cancel/timeout cleanup path.
func (g *Guard) Release(token *AdmitToken) error {
	if token == nil {
		return nil
	}
	state := g.stateFor(token.TenantID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if _, ok := state.pending[token.id]; !ok {
		return nil
	}
	delete(state.pending, token.id)
	state.reserved -= token.ExpectedBytes
	return nil
}

// Reclaim decrements usage on tenant-scoped delete, the one place
// spec.md §3 allows usage to move non-monotonically.
func (g *Guard) Reclaim(ctx context.Context, tenantID string, freedBytes int64) error {
	_, err := g.db.ExecContext(ctx, `
UPDATE tenant SET usage_bytes = GREATEST(usage_bytes - $1, 0) WHERE id = $2
`, freedBytes, tenantID)
	if err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "reclaim tenant usage", err)
	}
	return nil
}

// ScopeFor returns the read-side tenant predicate for tenantID.
func (g *Guard) ScopeFor(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}

// Close releases the underlying connection pool.
func (g *Guard) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}
