package journal

import "github.com/townsquare/media_server/internal/category"

// Upload is the advisory record of a stored file. Resolution never consults
// it; it exists for diagnostics and cleanup.
type Upload struct {
	ID            string            `json:"id"`
	Category      category.Category `json:"category"`
	Filename      string            `json:"filename"`
	ContentType   string            `json:"content_type"`
	SizeBytes     int64             `json:"size_bytes"`
	Backend       string            `json:"backend"`
	Store         string            `json:"store"`
	Path          string            `json:"path"`
	Width         *int              `json:"width,omitempty"`
	Height        *int              `json:"height,omitempty"`
	ThumbnailPath string            `json:"thumbnail_path,omitempty"`
	CreatedAt     int64             `json:"created_at"`
	DeletedAt     *int64            `json:"deleted_at,omitempty"`
}

// MirrorFailure records a copy that should exist but could not be written.
// The source location is captured so the reconciler can retry without
// re-resolving anything.
type MirrorFailure struct {
	ID            string            `json:"id"`
	Category      category.Category `json:"category"`
	Filename      string            `json:"filename"`
	SourceBackend string            `json:"source_backend"`
	SourceStore   string            `json:"source_store"`
	SourcePath    string            `json:"source_path"`
	Target        string            `json:"target"`
	Reason        string            `json:"reason"`
	CreatedAt     int64             `json:"created_at"`
	ResolvedAt    *int64            `json:"resolved_at,omitempty"`
}

// PendingMigration records a file whose primary copy landed on the
// filesystem while the object store was unavailable. The reconciler moves
// it forward once the store is reachable again.
type PendingMigration struct {
	ID            string            `json:"id"`
	Category      category.Category `json:"category"`
	Filename      string            `json:"filename"`
	SourceBackend string            `json:"source_backend"`
	SourceStore   string            `json:"source_store"`
	SourcePath    string            `json:"source_path"`
	CreatedAt     int64             `json:"created_at"`
	CompletedAt   *int64            `json:"completed_at,omitempty"`
}

// Repository persists the journal. All writes are best-effort from the
// caller's point of view: a journal failure never fails the media operation
// that triggered it.
type Repository interface {
	RecordUpload(upload *Upload) error
	MarkUploadDeleted(cat category.Category, filename string, deletedAt int64) error

	RecordMirrorFailure(failure *MirrorFailure) error
	UnresolvedMirrorFailures(limit int) ([]*MirrorFailure, error)
	ResolveMirrorFailure(id string, resolvedAt int64) error
	ResolveMirrorFailuresForKey(cat category.Category, filename string, resolvedAt int64) error
	CountUnresolvedMirrorFailures() (int, error)

	RecordPendingMigration(migration *PendingMigration) error
	PendingMigrations(limit int) ([]*PendingMigration, error)
	CompletePendingMigration(id string, completedAt int64) error
	CountPendingMigrations() (int, error)
}
