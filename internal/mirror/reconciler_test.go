package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/storage"
)

func TestRunNow_ShouldCompletePendingMigrations(t *testing.T) {
	// given a filesystem copy journaled while the object store was down
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	repo := journal.NewMemoryJournalRepository()

	key := storage.MediaKey{Category: category.Forum, Filename: "media-1-aa.png"}
	src := key.FilesystemLocation(storage.RootDev)
	fs.seed(src, "post-bytes")
	assert.NoError(t, repo.RecordPendingMigration(&journal.PendingMigration{
		ID: "m1", Category: key.Category, Filename: key.Filename,
		SourceBackend: string(src.Kind), SourceStore: src.Store, SourcePath: src.Path, CreatedAt: 1,
	}))

	reconciler := NewReconciler(object, fs, repo, &Config{})

	// when
	summary := reconciler.RunNow()

	// then
	assert.Equal(t, 1, summary.MigrationsCompleted)
	assert.Equal(t, 0, summary.MigrationsFailed)
	copied, ok := object.content(key.ObjectLocation())
	assert.True(t, ok)
	assert.Equal(t, "post-bytes", copied)
	count, _ := repo.CountPendingMigrations()
	assert.Equal(t, 0, count)
}

func TestRunNow_ShouldCloseMigrationsWhoseSourceVanished(t *testing.T) {
	// given a pending migration for a file deleted in the meantime
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	repo := journal.NewMemoryJournalRepository()
	assert.NoError(t, repo.RecordPendingMigration(&journal.PendingMigration{
		ID: "m1", Category: category.Forum, Filename: "gone.png",
		SourceBackend: string(storage.KindFilesystem), SourceStore: storage.RootDev, SourcePath: "forum-media/gone.png", CreatedAt: 1,
	}))

	reconciler := NewReconciler(object, fs, repo, &Config{})

	// when
	summary := reconciler.RunNow()

	// then the row is closed instead of retrying forever
	assert.Equal(t, 0, summary.MigrationsFailed)
	count, _ := repo.CountPendingMigrations()
	assert.Equal(t, 0, count)
}

func TestRunNow_ShouldKeepMigrationsWhileObjectStoreIsDown(t *testing.T) {
	// given an object store still rejecting writes
	object := newFakeBackend(storage.KindObject)
	object.failPut = true
	fs := newFakeBackend(storage.KindFilesystem)
	repo := journal.NewMemoryJournalRepository()

	key := storage.MediaKey{Category: category.Forum, Filename: "media-1-aa.png"}
	src := key.FilesystemLocation(storage.RootDev)
	fs.seed(src, "post-bytes")
	assert.NoError(t, repo.RecordPendingMigration(&journal.PendingMigration{
		ID: "m1", Category: key.Category, Filename: key.Filename,
		SourceBackend: string(src.Kind), SourceStore: src.Store, SourcePath: src.Path, CreatedAt: 1,
	}))

	reconciler := NewReconciler(object, fs, repo, &Config{})

	// when
	summary := reconciler.RunNow()

	// then the row survives for the next sweep
	assert.Equal(t, 1, summary.MigrationsFailed)
	count, _ := repo.CountPendingMigrations()
	assert.Equal(t, 1, count)
}

func TestRunNow_ShouldRepairMirrorFailuresTowardTheirTarget(t *testing.T) {
	// given an upload whose filesystem mirror never happened
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	repo := journal.NewMemoryJournalRepository()

	key := storage.MediaKey{Category: category.Calendar, Filename: "eventImage-1-aa.jpg"}
	src := key.ObjectLocation()
	object.seed(src, "event-bytes")
	assert.NoError(t, repo.RecordMirrorFailure(&journal.MirrorFailure{
		ID: "f1", Category: key.Category, Filename: key.Filename,
		SourceBackend: string(src.Kind), SourceStore: src.Store, SourcePath: src.Path,
		Target: string(storage.KindFilesystem), Reason: "disk full", CreatedAt: 1,
	}))

	reconciler := NewReconciler(object, fs, repo, &Config{})

	// when
	summary := reconciler.RunNow()

	// then the filesystem copy exists even though an object store is configured
	assert.Equal(t, 1, summary.MirrorsRepaired)
	copied, ok := fs.content(key.FilesystemLocation(storage.RootDev))
	assert.True(t, ok)
	assert.Equal(t, "event-bytes", copied)
	count, _ := repo.CountUnresolvedMirrorFailures()
	assert.Equal(t, 0, count)
}
