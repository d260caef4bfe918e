// Package mirror moves stored files toward the locations they are supposed
// to occupy: the object store when one is configured, the primary
// filesystem subdirectory otherwise. Copies arrive from the opportunistic
// queue fed by resolution and from the reconciler that drains the journal.
package mirror

import (
	"context"
	"fmt"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/storage"
)

// Task names one file to mirror plus the location its bytes can be read
// from right now, so no task ever needs re-resolving.
type Task struct {
	Key    storage.MediaKey
	Source storage.Location
}

// Config tunes the queue and the reconciler. Zero values fall back to
// defaults at construction.
type Config struct {
	QueueSize            int `mapstructure:"queue_size"`
	TimeoutSec           int `mapstructure:"timeout_sec"`
	ReconcileIntervalMin int `mapstructure:"reconcile_interval_min"`
	BatchSize            int `mapstructure:"batch_size"`
}

// Copy streams one stored file from src into the canonical location of the
// dest substrate. An existing destination copy is left alone, so retries
// are idempotent.
func Copy(ctx context.Context, object, fs storage.Backend, key storage.MediaKey, src storage.Location, dest storage.Kind) error {
	source := backendFor(src.Kind, object, fs)
	if source == nil {
		return fmt.Errorf("no backend available for source %s", src.Kind)
	}
	target := backendFor(dest, object, fs)
	if target == nil {
		return fmt.Errorf("no backend available for target %s", dest)
	}

	destLoc := canonicalLocation(dest, key)
	if src == destLoc {
		return nil
	}
	if exists, err := target.Exists(ctx, destLoc); err == nil && exists {
		return nil
	}

	reader, err := source.Open(ctx, src)
	if err != nil {
		return fmt.Errorf("open mirror source %s: %w", src, err)
	}
	defer reader.Close()

	if _, err := target.Put(ctx, key, reader, -1, category.ContentTypeByName(key.Filename)); err != nil {
		return fmt.Errorf("write mirror copy of %s: %w", key, err)
	}
	return nil
}

func backendFor(kind storage.Kind, object, fs storage.Backend) storage.Backend {
	if kind == storage.KindObject {
		return object
	}
	return fs
}

func canonicalLocation(kind storage.Kind, key storage.MediaKey) storage.Location {
	if kind == storage.KindObject {
		return key.ObjectLocation()
	}
	return key.FilesystemLocation(storage.RootDev)
}
