// Package ingestcore is the top-level facade wiring C1–C12 together,
// exposing the external interfaces spec.md §6 names (IngestMedia,
// IngestJSON, Search, Delete) as Go APIs rather than over a wire
// protocol — the "no transport surface" Non-goal this module carries
// from spec.md §1.
//
// Construction follows store-core's cmd/store-server main.go: each
// subsystem is opened independently, a soft-failure is logged rather
// than fatal where the teacher does the same (vectorstore/signalstore
// there; embedding provider health here), and the facade is the single
// object callers hold.
package ingestcore

import (
	"context"
	"database/sql"
	"log"

	"github.com/nucleus/ingestcore/internal/config"
	"github.com/nucleus/ingestcore/pkg/catalog"
	"github.com/nucleus/ingestcore/pkg/chunker"
	"github.com/nucleus/ingestcore/pkg/embedding"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/nucleus/ingestcore/pkg/media"
	"github.com/nucleus/ingestcore/pkg/objectstore"
	"github.com/nucleus/ingestcore/pkg/prefixindex"
	"github.com/nucleus/ingestcore/pkg/reconciler"
	"github.com/nucleus/ingestcore/pkg/retrieval"
	"github.com/nucleus/ingestcore/pkg/router"
	"github.com/nucleus/ingestcore/pkg/taxonomy"
	"github.com/nucleus/ingestcore/pkg/tenant"
	"github.com/nucleus/ingestcore/pkg/vectorindex"
)

// Service is the single entry point embedding callers use: it owns every
// C1–C12 component and the shared database handles they commit
// transactions against.
type Service struct {
	db       *sql.DB
	store    objectstore.Store
	taxonomy *taxonomy.Taxonomy
	catalog  *catalog.Store
	guard    *tenant.Guard
	media    *media.Pipeline
	router   *router.Router
	vectors  *vectorindex.Store
	prefix   *prefixindex.Index
	gateway  *embedding.Gateway
	composer *retrieval.Composer
	recon    *reconciler.Reconciler
}

// New wires every component from cfg. It opens one *sql.DB for the
// catalog/tenant/router relational surface (CatalogDatabaseURL) and
// hands each package an OpenFromDB so that cross-component transactions
// (media's combined catalog+usage commit) share a single connection
// pool, and a second handle for the vector index when VectorDatabaseURL
// names a distinct database.
func New(cfg *config.Config) (*Service, error) {
	if cfg.CatalogDatabaseURL == "" {
		return nil, ingesterr.New(ingesterr.Internal, "CATALOG_DATABASE_URL (or DATABASE_URL) is required")
	}

	db, err := sql.Open("postgres", cfg.CatalogDatabaseURL)
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "open catalog database", err)
	}

	catalogStore, err := catalog.OpenFromDB(db)
	if err != nil {
		return nil, err
	}
	guard, err := tenant.OpenFromDB(db)
	if err != nil {
		return nil, err
	}
	routerStore, err := router.New(db, catalogStore, guard)
	if err != nil {
		return nil, err
	}

	vectorDSN := cfg.VectorDatabaseURL
	if vectorDSN == "" {
		vectorDSN = cfg.CatalogDatabaseURL
	}
	var vectors *vectorindex.Store
	if vectorDSN == cfg.CatalogDatabaseURL {
		vectors, err = vectorindex.OpenFromDB(db, cfg.VectorDimension)
	} else {
		vectors, err = vectorindex.Open(vectorDSN, cfg.VectorDimension)
	}
	if err != nil {
		return nil, err
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		return nil, err
	}

	tax := taxonomy.Default()
	if cfg.TaxonomyConfigPath != "" {
		tax, err = taxonomy.Load(cfg.TaxonomyConfigPath)
		if err != nil {
			return nil, ingesterr.Wrap(ingesterr.Internal, "load taxonomy configuration", err)
		}
	}

	gateway, err := newEmbeddingGateway(cfg)
	if err != nil {
		return nil, err
	}
	if healthErr := gateway.Health(context.Background()); healthErr != nil {
		// A degraded embedding provider should not prevent the process
		// from starting; prefix search and media ingest do not depend
		// on it. Mirrors store-core's soft-fail vectorstore/signalstore
		// init pattern.
		log.Printf("ingestcore: embedding provider health check failed at startup: %v", healthErr)
	}

	prefix := prefixindex.New()
	mediaPipeline := media.New(store, tax, catalogStore, guard)
	composer := retrieval.New(prefix, gateway, vectors, catalogStore)
	recon := reconciler.New(catalogStore, routerStore)

	svc := &Service{
		db:       db,
		store:    store,
		taxonomy: tax,
		catalog:  catalogStore,
		guard:    guard,
		media:    mediaPipeline,
		router:   routerStore,
		vectors:  vectors,
		prefix:   prefix,
		gateway:  gateway,
		composer: composer,
		recon:    recon,
	}
	if err := recon.Start(cfg.ReconcileIntervalCron); err != nil {
		return nil, ingesterr.Wrap(ingesterr.Internal, "start reconciler schedule", err)
	}
	return svc, nil
}

func newObjectStore(cfg *config.Config) (objectstore.Store, error) {
	if cfg.ObjectStoreEndpoint == "" {
		return objectstore.NewLocalStore(cfg.CanonicalRoot)
	}
	return objectstore.NewS3Store(context.Background(), objectstore.S3Config{
		Endpoint:  cfg.ObjectStoreEndpoint,
		Bucket:    cfg.ObjectStoreBucket,
		AccessKey: cfg.ObjectStoreAccessKey,
		SecretKey: cfg.ObjectStoreSecretKey,
		UseSSL:    cfg.ObjectStoreUseSSL,
	})
}

func newEmbeddingGateway(cfg *config.Config) (*embedding.Gateway, error) {
	var provider embedding.Provider
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, ingesterr.New(ingesterr.Internal, "OPENAI_API_KEY required for EMBEDDING_PROVIDER=openai")
		}
		provider = embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbedDim)
	case "zero":
		provider = embedding.NewZeroProvider(cfg.EmbedDim)
	default:
		provider = embedding.NewLocalProvider(cfg.EmbedDim)
	}
	return embedding.New(provider, cfg.EmbedDim)
}

// IngestMedia implements spec.md §4.3's ingestMedia operation end to end.
func (s *Service) IngestMedia(ctx context.Context, req media.Request) (*catalog.CatalogFile, error) {
	return s.media.IngestMedia(ctx, req)
}

// IngestJSON implements spec.md §4.5's ingestJson operation.
func (s *Service) IngestJSON(ctx context.Context, tenantID string, tree any, tags []string) (*catalog.CatalogJson, router.Decision, error) {
	return s.router.IngestJson(ctx, tenantID, tree, tags)
}

// IndexFile chunks a file's extracted text (spec component C6), embeds
// each chunk (C7), and stores both the prefix tokens (C9) and vectors
// (C8) for retrieval, then marks the catalog entry indexed.
func (s *Service) IndexFile(ctx context.Context, tenantID, fileID, category, text string) error {
	chunks := chunker.Split(text, chunker.DefaultOptions())
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		s.prefix.IndexText(fileID, c.Text)
	}
	vectors, err := s.gateway.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	storeChunks := make([]vectorindex.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = vectorindex.Chunk{
			TenantID:     tenantID,
			SourceFileID: fileID,
			Category:     category,
			Ordinal:      c.Ordinal,
			Text:         c.Text,
			Embedding:    vectors[i],
		}
	}
	if err := s.vectors.StoreChunks(ctx, fileID, storeChunks); err != nil {
		return err
	}
	return s.catalog.MarkIndexed(ctx, tenantID, fileID)
}

// Search implements spec.md §4.10's retrieval composition.
func (s *Service) Search(ctx context.Context, tenantID, query string, opts retrieval.Options) (*retrieval.SearchResponse, error) {
	return s.composer.Search(ctx, tenantID, query, opts)
}

// Delete removes a catalog file entry, its canonical/thumbnail objects,
// its indexed chunks, and reclaims its quota usage, per spec.md §4.3's
// delete path and §4.11's Reclaim exception to monotonic usage.
func (s *Service) Delete(ctx context.Context, tenantID, fileID string) error {
	file, err := s.catalog.GetFile(ctx, tenantID, fileID)
	if err != nil {
		return err
	}
	freedBytes, err := s.catalog.DeleteFile(ctx, tenantID, fileID)
	if err != nil {
		return err
	}
	objectKeys := []string{file.CanonicalPath}
	for _, thumbKey := range file.Thumbs {
		objectKeys = append(objectKeys, thumbKey)
	}
	for _, key := range objectKeys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Printf("ingestcore: failed to delete object %s for %s: %v", key, fileID, err)
		}
	}
	if err := s.vectors.DeleteSource(ctx, fileID); err != nil {
		log.Printf("ingestcore: failed to delete vector chunks for %s: %v", fileID, err)
	}
	s.prefix.RemoveSource(fileID)
	return s.guard.Reclaim(ctx, tenantID, freedBytes)
}

// SweepOnce triggers one reconciliation pass on demand, outside the
// reconciler's own cron schedule.
func (s *Service) SweepOnce(ctx context.Context) error {
	return s.recon.SweepOnce(ctx)
}

// Close releases every underlying connection and stops the reconciler
// schedule.
func (s *Service) Close() error {
	s.recon.Stop()
	if err := s.vectors.Close(); err != nil {
		log.Printf("ingestcore: vector store close: %v", err)
	}
	if err := s.guard.Close(); err != nil {
		log.Printf("ingestcore: tenant guard close: %v", err)
	}
	if err := s.catalog.Close(); err != nil {
		log.Printf("ingestcore: catalog store close: %v", err)
	}
	return s.db.Close()
}
