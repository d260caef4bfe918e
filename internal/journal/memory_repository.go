package journal

import (
	"sort"
	"sync"

	"github.com/townsquare/media_server/internal/category"
)

// MemoryJournalRepository keeps the journal in process memory. It backs
// tests and deployments that run without a database.
type MemoryJournalRepository struct {
	mu                sync.Mutex
	uploads           map[string]*Upload
	mirrorFailures    map[string]*MirrorFailure
	pendingMigrations map[string]*PendingMigration
}

func NewMemoryJournalRepository() *MemoryJournalRepository {
	return &MemoryJournalRepository{
		uploads:           make(map[string]*Upload),
		mirrorFailures:    make(map[string]*MirrorFailure),
		pendingMigrations: make(map[string]*PendingMigration),
	}
}

func (r *MemoryJournalRepository) RecordUpload(upload *Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *upload
	r.uploads[upload.ID] = &stored
	return nil
}

func (r *MemoryJournalRepository) MarkUploadDeleted(cat category.Category, filename string, deletedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.uploads {
		if u.Category == cat && u.Filename == filename && u.DeletedAt == nil {
			ts := deletedAt
			u.DeletedAt = &ts
		}
	}
	return nil
}

func (r *MemoryJournalRepository) RecordMirrorFailure(failure *MirrorFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *failure
	r.mirrorFailures[failure.ID] = &stored
	return nil
}

func (r *MemoryJournalRepository) UnresolvedMirrorFailures(limit int) ([]*MirrorFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []*MirrorFailure
	for _, f := range r.mirrorFailures {
		if f.ResolvedAt == nil {
			copied := *f
			failures = append(failures, &copied)
		}
	}
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].CreatedAt != failures[j].CreatedAt {
			return failures[i].CreatedAt < failures[j].CreatedAt
		}
		return failures[i].ID < failures[j].ID
	})
	if limit > 0 && len(failures) > limit {
		failures = failures[:limit]
	}
	return failures, nil
}

func (r *MemoryJournalRepository) ResolveMirrorFailure(id string, resolvedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.mirrorFailures[id]; ok && f.ResolvedAt == nil {
		ts := resolvedAt
		f.ResolvedAt = &ts
	}
	return nil
}

func (r *MemoryJournalRepository) ResolveMirrorFailuresForKey(cat category.Category, filename string, resolvedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.mirrorFailures {
		if f.Category == cat && f.Filename == filename && f.ResolvedAt == nil {
			ts := resolvedAt
			f.ResolvedAt = &ts
		}
	}
	return nil
}

func (r *MemoryJournalRepository) CountUnresolvedMirrorFailures() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, f := range r.mirrorFailures {
		if f.ResolvedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *MemoryJournalRepository) RecordPendingMigration(migration *PendingMigration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *migration
	r.pendingMigrations[migration.ID] = &stored
	return nil
}

func (r *MemoryJournalRepository) PendingMigrations(limit int) ([]*PendingMigration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var migrations []*PendingMigration
	for _, m := range r.pendingMigrations {
		if m.CompletedAt == nil {
			copied := *m
			migrations = append(migrations, &copied)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		if migrations[i].CreatedAt != migrations[j].CreatedAt {
			return migrations[i].CreatedAt < migrations[j].CreatedAt
		}
		return migrations[i].ID < migrations[j].ID
	})
	if limit > 0 && len(migrations) > limit {
		migrations = migrations[:limit]
	}
	return migrations, nil
}

func (r *MemoryJournalRepository) CompletePendingMigration(id string, completedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.pendingMigrations[id]; ok && m.CompletedAt == nil {
		ts := completedAt
		m.CompletedAt = &ts
	}
	return nil
}

func (r *MemoryJournalRepository) CountPendingMigrations() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, m := range r.pendingMigrations {
		if m.CompletedAt == nil {
			count++
		}
	}
	return count, nil
}

// Upload returns the stored upload row by id, for tests.
func (r *MemoryJournalRepository) Upload(id string) (*Upload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

// Uploads returns every stored upload row sorted by creation time, for
// tests and diagnostics.
func (r *MemoryJournalRepository) Uploads() []*Upload {
	r.mu.Lock()
	defer r.mu.Unlock()

	var uploads []*Upload
	for _, u := range r.uploads {
		copied := *u
		uploads = append(uploads, &copied)
	}
	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].CreatedAt != uploads[j].CreatedAt {
			return uploads[i].CreatedAt < uploads[j].CreatedAt
		}
		return uploads[i].ID < uploads[j].ID
	})
	return uploads
}
