package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/storage"
)

const (
	defaultReconcileInterval = 15 * time.Minute
	defaultBatchSize         = 100
)

// Reconciler periodically drains the journal: pending migrations created
// while the object store was down, and mirror copies that failed. It can
// also be triggered on demand through the diagnostics API.
type Reconciler struct {
	object   storage.Backend
	fs       storage.Backend
	journal  journal.Repository
	interval time.Duration
	timeout  time.Duration
	batch    int
	done     chan struct{}
}

// Summary reports what one reconcile sweep accomplished.
type Summary struct {
	MigrationsCompleted int `json:"migrations_completed"`
	MigrationsFailed    int `json:"migrations_failed"`
	MirrorsRepaired     int `json:"mirrors_repaired"`
	MirrorsFailed       int `json:"mirrors_failed"`
}

func NewReconciler(object, fs storage.Backend, repo journal.Repository, config *Config) *Reconciler {
	interval := time.Duration(config.ReconcileIntervalMin) * time.Minute
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	batch := config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	return &Reconciler{
		object:   object,
		fs:       fs,
		journal:  repo,
		interval: interval,
		timeout:  timeout,
		batch:    batch,
		done:     make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	log.Info().Dur("interval", r.interval).Msg("[MIRROR] Starting reconciler")
	go r.loop()
}

func (r *Reconciler) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunNow()
		case <-r.done:
			return
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.done)
}

// RunNow performs one sweep over the journal and reports what it did.
func (r *Reconciler) RunNow() *Summary {
	metrics.ReconcileRunsTotal.Inc()

	summary := &Summary{}
	r.drainPendingMigrations(summary)
	r.retryMirrorFailures(summary)

	log.Info().
		Int("migrations_completed", summary.MigrationsCompleted).
		Int("migrations_failed", summary.MigrationsFailed).
		Int("mirrors_repaired", summary.MirrorsRepaired).
		Int("mirrors_failed", summary.MirrorsFailed).
		Msg("[MIRROR] Reconcile sweep complete")
	return summary
}

func (r *Reconciler) drainPendingMigrations(summary *Summary) {
	if r.object == nil {
		// migrations target the object store; nothing to do without one
		return
	}

	migrations, err := r.journal.PendingMigrations(r.batch)
	if err != nil {
		log.Warn().Err(err).Msg("[MIRROR] Failed to load pending migrations")
		return
	}

	for _, m := range migrations {
		key := storage.MediaKey{Category: m.Category, Filename: m.Filename}
		src := storage.Location{Kind: storage.Kind(m.SourceBackend), Store: m.SourceStore, Path: m.SourcePath}

		err := r.copyWithTimeout(key, src, storage.KindObject)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			summary.MigrationsFailed++
			log.Warn().Err(err).Str("file", key.String()).Msg("[MIRROR] Pending migration failed")
			continue
		}
		// a vanished source means the file was deleted; close the row
		if err := r.journal.CompletePendingMigration(m.ID, time.Now().UnixMilli()); err != nil {
			log.Warn().Err(err).Str("file", key.String()).Msg("[MIRROR] Failed to complete pending migration")
			continue
		}
		summary.MigrationsCompleted++
	}
}

func (r *Reconciler) retryMirrorFailures(summary *Summary) {
	failures, err := r.journal.UnresolvedMirrorFailures(r.batch)
	if err != nil {
		log.Warn().Err(err).Msg("[MIRROR] Failed to load mirror failures")
		return
	}

	for _, f := range failures {
		dest := storage.Kind(f.Target)
		if dest == storage.KindObject && r.object == nil {
			continue
		}

		key := storage.MediaKey{Category: f.Category, Filename: f.Filename}
		src := storage.Location{Kind: storage.Kind(f.SourceBackend), Store: f.SourceStore, Path: f.SourcePath}

		err := r.copyWithTimeout(key, src, dest)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			summary.MirrorsFailed++
			log.Warn().Err(err).Str("file", key.String()).Msg("[MIRROR] Mirror retry failed")
			continue
		}
		if err := r.journal.ResolveMirrorFailure(f.ID, time.Now().UnixMilli()); err != nil {
			log.Warn().Err(err).Str("file", key.String()).Msg("[MIRROR] Failed to resolve mirror failure")
			continue
		}
		summary.MirrorsRepaired++
	}
}

func (r *Reconciler) copyWithTimeout(key storage.MediaKey, src storage.Location, dest storage.Kind) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return Copy(ctx, r.object, r.fs, key, src, dest)
}
