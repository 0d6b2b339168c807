// Package media implements the Media Pipeline (spec component C3):
// streaming ingest of opaque binary artifacts with incremental
// SHA-256/quota enforcement, magic detection, classification, atomic
// staging-to-canonical rename, thumbnail generation, and the
// transactional catalog/usage commit.
//
// The staged-write-then-atomic-rename shape follows ucl-core's
// minio.StagingProvider.PutBatch (stage under a tenant-scoped prefix,
// then move into its final home), re-platformed from MinIO batches onto
// the objectstore.Store abstraction.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nucleus/ingestcore/pkg/catalog"
	"github.com/nucleus/ingestcore/pkg/ids"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/nucleus/ingestcore/pkg/objectstore"
	"github.com/nucleus/ingestcore/pkg/pathsynth"
	"github.com/nucleus/ingestcore/pkg/taxonomy"
	"github.com/nucleus/ingestcore/pkg/tenant"
)

// magicSniffBytes is spec.md §4.3's "first N bytes (N ≥ 4 KiB)" magic
// detection window.
const magicSniffBytes = 4096

// streamCheckInterval caps how much of the stream is read between
// incremental quota checks, so a single oversized upload is aborted
// well before its last byte per spec.md §4.3's "streaming enforcement,
// not post-hoc" requirement.
const streamCheckInterval = 256 * 1024

// Pipeline wires C1 (taxonomy), C2 (path synthesis), object storage,
// the tenant guard (C11), and the catalog store (C12) into
// spec.md §4.3's ingestMedia operation.
type Pipeline struct {
	store    objectstore.Store
	taxonomy *taxonomy.Taxonomy
	catalog  *catalog.Store
	guard    *tenant.Guard
}

// New constructs a Pipeline.
func New(store objectstore.Store, tax *taxonomy.Taxonomy, catalogStore *catalog.Store, guard *tenant.Guard) *Pipeline {
	return &Pipeline{store: store, taxonomy: tax, catalog: catalogStore, guard: guard}
}

// Request describes one ingestMedia call.
type Request struct {
	TenantID     string
	Stream       io.Reader
	DeclaredName string
	DeclaredMime string
	UserComment  string
}

// IngestMedia implements spec.md §4.3's state machine:
// RECEIVING → STAGED → CLASSIFIED → COMMITTED | ABORTED. Only COMMITTED
// is observable to the caller; every other path returns a cleaned-up
// error.
func (p *Pipeline) IngestMedia(ctx context.Context, req Request) (*catalog.CatalogFile, error) {
	stagingKey := path.Join("staging", req.TenantID, ids.New()+".part")

	// RECEIVING: stream to staging while hashing and quota-checking incrementally.
	data, sha256Hex, magicSample, err := p.receive(ctx, req.TenantID, req.Stream)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, stagingKey, data); err != nil {
		return nil, err
	}
	cleanupStaging := func() {
		if delErr := p.store.Delete(context.Background(), stagingKey); delErr != nil {
			log.Printf("media: failed to clean up staging object %s: %v", stagingKey, delErr)
		}
	}

	// STAGED: admit the now-known byte count against the tenant's quota.
	token, err := p.guard.Admit(ctx, req.TenantID, int64(len(data)))
	if err != nil {
		cleanupStaging()
		return nil, err
	}
	abortAdmission := func() {
		if relErr := p.guard.Release(token); relErr != nil {
			log.Printf("media: failed to release admit token for tenant %s: %v", req.TenantID, relErr)
		}
	}

	// CLASSIFIED: magic-detect, classify, synthesize the canonical path.
	magicMime := mimetype.Detect(magicSample).String()
	result := p.taxonomy.Classify(req.DeclaredName, req.DeclaredMime, magicMime)

	canonicalPath, err := pathsynth.Synthesize(result.Tag, req.TenantID, req.DeclaredName, time.Now().UTC(), func(candidate string) (bool, error) {
		return p.store.Exists(ctx, candidate)
	})
	if err != nil {
		cleanupStaging()
		abortAdmission()
		return nil, err
	}

	if err := p.store.Rename(ctx, stagingKey, canonicalPath); err != nil {
		cleanupStaging()
		abortAdmission()
		return nil, err
	}
	cleanupCanonical := func() {
		if delErr := p.store.Delete(context.Background(), canonicalPath); delErr != nil {
			log.Printf("media: failed to clean up canonical object %s: %v", canonicalPath, delErr)
		}
	}

	thumbable := p.taxonomy.Thumbable(result.Tag)
	var thumbs map[string]string
	var meta Metadata
	if thumbable {
		thumbs, meta, err = p.generateDerivatives(ctx, canonicalPath, data)
		if err != nil {
			// Failure to produce derivatives is logged and demoted to a
			// warning per spec.md §4.3; it does not fail the ingest.
			log.Printf("media: thumbnail generation failed for %s: %v", canonicalPath, err)
			thumbs = map[string]string{}
		}
	}

	file := catalog.CatalogFile{
		ID:            ids.New(),
		TenantID:      req.TenantID,
		OriginalName:  req.DeclaredName,
		Category:      result.Tag,
		MimeType:      magicMime,
		SizeBytes:     int64(len(data)),
		SHA256:        sha256Hex,
		CanonicalPath: canonicalPath,
		CreatedAt:     time.Now().UTC(),
		Indexed:       false,
		Thumbs:        thumbs,
	}
	_ = meta // the extracted metadata is not persisted: CatalogFile has no field for width, height, color mode, transparency or EXIF presence.

	// COMMITTED: catalog insert and tenant usage update in one
	// transactional unit, per spec.md §4.3.
	tx, err := p.catalog.BeginTx(ctx)
	if err != nil {
		cleanupCanonical()
		abortAdmission()
		return nil, err
	}
	defer tx.Rollback()

	if err := p.catalog.InsertFileTx(ctx, tx, file); err != nil {
		cleanupCanonical()
		abortAdmission()
		return nil, err
	}
	if err := p.guard.CommitTx(ctx, tx, token, file.SizeBytes); err != nil {
		cleanupCanonical()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		cleanupCanonical()
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "commit media ingest transaction", err)
	}

	return &file, nil
}

// receive streams req into memory, computing SHA-256 and byte length
// incrementally and aborting with QuotaExceeded as soon as the observed
// total would cross the tenant's quota, without waiting for EOF.
func (p *Pipeline) receive(ctx context.Context, tenantID string, stream io.Reader) (data []byte, sha256Hex string, magicSample []byte, err error) {
	hasher := sha256.New()
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	var total int64
	var sinceLastCheck int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, "", nil, ingesterr.Wrap(ingesterr.Cancelled, "media upload interrupted", err)
		}
		n, readErr := stream.Read(chunk)
		if n > 0 {
			hasher.Write(chunk[:n])
			buf.Write(chunk[:n])
			total += int64(n)
			sinceLastCheck += int64(n)
			if sinceLastCheck >= streamCheckInterval {
				sinceLastCheck = 0
				if quotaErr := p.guard.CheckStreaming(ctx, tenantID, total); quotaErr != nil {
					return nil, "", nil, quotaErr
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, "", nil, ingesterr.Wrap(ingesterr.Internal, "read upload stream", readErr)
		}
	}
	if quotaErr := p.guard.CheckStreaming(ctx, tenantID, total); quotaErr != nil {
		return nil, "", nil, quotaErr
	}

	sample := buf.Bytes()
	if len(sample) > magicSniffBytes {
		sample = sample[:magicSniffBytes]
	}
	return buf.Bytes(), hex.EncodeToString(hasher.Sum(nil)), sample, nil
}
