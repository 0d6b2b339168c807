// Package reconciler runs the periodic background sweep spec.md §7/§9
// relies on to clean up payload writes that outlived their catalog
// entry after pkg/router's intentionally uncoordinated cross-store
// commit. It only drops payloads with no catalog row; catalog rows whose
// payload or file is missing are not examined or marked.
//
// Re-platformed from brain-core's GCLogStoreActivity — an env-gated
// retention sweep with structured skip/done logging — off Temporal and
// onto a github.com/robfig/cron schedule, since this module has no
// workflow engine of its own.
package reconciler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/nucleus/ingestcore/pkg/catalog"
	"github.com/nucleus/ingestcore/pkg/router"
)

// Reconciler sweeps pkg/router's payload stores for rows/tables with no
// matching catalog.CatalogJson entry, and drops them.
type Reconciler struct {
	catalog *catalog.Store
	router  *router.Router
	cron    *cron.Cron
}

// New constructs a Reconciler. It does not start sweeping until Start
// is called.
func New(catalogStore *catalog.Store, r *router.Router) *Reconciler {
	return &Reconciler{
		catalog: catalogStore,
		router:  r,
		cron:    cron.New(),
	}
}

// Start schedules the orphan sweep on schedule (a robfig/cron
// expression, e.g. "@every 5m") and returns once the schedule is
// registered; the sweep itself runs asynchronously on cron's own
// goroutine. An empty schedule disables the reconciler, mirroring
// GCLogStoreActivity's "retention unset" skip.
func (r *Reconciler) Start(schedule string) error {
	if schedule == "" {
		log.Printf("reconciler: skip, reason=schedule unset")
		return nil
	}
	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.SweepOnce(context.Background()); err != nil {
			log.Printf("reconciler: sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// SweepOnce performs a single orphan-reconciliation pass: every
// relational payload table and every document_payloads row is checked
// against the json catalog, and anything unreferenced is dropped; an id
// whose catalog check fails is logged and kept for a later pass. This
// is exported so it can be triggered on demand (e.g. from a CLI
// subcommand or a test) without waiting on the cron schedule.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	dropped := 0

	relationalIDs, err := r.router.ListRelationalPayloadIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range relationalIDs {
		exists, err := r.catalog.JsonExists(ctx, id)
		if err != nil {
			log.Printf("reconciler: failed to check catalog for relational payload %s: %v", id, err)
			continue
		}
		if exists {
			continue
		}
		if err := r.router.DeleteRelational(ctx, id); err != nil {
			log.Printf("reconciler: failed to drop orphan relational payload %s: %v", id, err)
			continue
		}
		dropped++
	}

	documentIDs, err := r.router.ListDocumentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range documentIDs {
		exists, err := r.catalog.JsonExists(ctx, id)
		if err != nil {
			log.Printf("reconciler: failed to check catalog for document payload %s: %v", id, err)
			continue
		}
		if exists {
			continue
		}
		if err := r.router.DeleteDocument(ctx, id); err != nil {
			log.Printf("reconciler: failed to drop orphan document payload %s: %v", id, err)
			continue
		}
		dropped++
	}

	log.Printf("reconciler: sweep-done, dropped=%d", dropped)
	return nil
}
