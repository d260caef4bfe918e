package journal

import (
	"database/sql"
	"fmt"

	"github.com/townsquare/media_server/internal/category"
)

// JournalRepository is the Postgres-backed journal.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) RecordUpload(upload *Upload) error {
	query := `
		INSERT INTO media_uploads (id, category, filename, content_type, size_bytes, backend, store, path, width, height, thumbnail_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(query,
		upload.ID, string(upload.Category), upload.Filename, upload.ContentType, upload.SizeBytes,
		upload.Backend, upload.Store, upload.Path,
		nullableInt(upload.Width), nullableInt(upload.Height), upload.ThumbnailPath, upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

func (r *JournalRepository) MarkUploadDeleted(cat category.Category, filename string, deletedAt int64) error {
	query := `UPDATE media_uploads SET deleted_at = $1 WHERE category = $2 AND filename = $3 AND deleted_at IS NULL`

	_, err := r.db.Exec(query, deletedAt, string(cat), filename)
	if err != nil {
		return fmt.Errorf("failed to mark upload deleted: %w", err)
	}
	return nil
}

func (r *JournalRepository) RecordMirrorFailure(failure *MirrorFailure) error {
	query := `
		INSERT INTO mirror_failures (id, category, filename, source_backend, source_store, source_path, target, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		failure.ID, string(failure.Category), failure.Filename,
		failure.SourceBackend, failure.SourceStore, failure.SourcePath,
		failure.Target, failure.Reason, failure.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record mirror failure: %w", err)
	}
	return nil
}

func (r *JournalRepository) UnresolvedMirrorFailures(limit int) ([]*MirrorFailure, error) {
	query := `
		SELECT id, category, filename, source_backend, source_store, source_path, target, reason, created_at
		FROM mirror_failures
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mirror failures: %w", err)
	}
	defer rows.Close()

	var failures []*MirrorFailure
	for rows.Next() {
		var f MirrorFailure
		var cat string
		err := rows.Scan(&f.ID, &cat, &f.Filename, &f.SourceBackend, &f.SourceStore, &f.SourcePath, &f.Target, &f.Reason, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mirror failure: %w", err)
		}
		f.Category = category.Category(cat)
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}

func (r *JournalRepository) ResolveMirrorFailure(id string, resolvedAt int64) error {
	query := `UPDATE mirror_failures SET resolved_at = $1 WHERE id = $2 AND resolved_at IS NULL`

	_, err := r.db.Exec(query, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to resolve mirror failure: %w", err)
	}
	return nil
}

func (r *JournalRepository) ResolveMirrorFailuresForKey(cat category.Category, filename string, resolvedAt int64) error {
	query := `UPDATE mirror_failures SET resolved_at = $1 WHERE category = $2 AND filename = $3 AND resolved_at IS NULL`

	_, err := r.db.Exec(query, resolvedAt, string(cat), filename)
	if err != nil {
		return fmt.Errorf("failed to resolve mirror failures: %w", err)
	}
	return nil
}

func (r *JournalRepository) CountUnresolvedMirrorFailures() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM mirror_failures WHERE resolved_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mirror failures: %w", err)
	}
	return count, nil
}

func (r *JournalRepository) RecordPendingMigration(migration *PendingMigration) error {
	query := `
		INSERT INTO pending_migrations (id, category, filename, source_backend, source_store, source_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		migration.ID, string(migration.Category), migration.Filename,
		migration.SourceBackend, migration.SourceStore, migration.SourcePath, migration.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record pending migration: %w", err)
	}
	return nil
}

func (r *JournalRepository) PendingMigrations(limit int) ([]*PendingMigration, error) {
	query := `
		SELECT id, category, filename, source_backend, source_store, source_path, created_at
		FROM pending_migrations
		WHERE completed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*PendingMigration
	for rows.Next() {
		var m PendingMigration
		var cat string
		err := rows.Scan(&m.ID, &cat, &m.Filename, &m.SourceBackend, &m.SourceStore, &m.SourcePath, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending migration: %w", err)
		}
		m.Category = category.Category(cat)
		migrations = append(migrations, &m)
	}
	return migrations, rows.Err()
}

func (r *JournalRepository) CompletePendingMigration(id string, completedAt int64) error {
	query := `UPDATE pending_migrations SET completed_at = $1 WHERE id = $2 AND completed_at IS NULL`

	_, err := r.db.Exec(query, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete pending migration: %w", err)
	}
	return nil
}

func (r *JournalRepository) CountPendingMigrations() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pending_migrations WHERE completed_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending migrations: %w", err)
	}
	return count, nil
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
