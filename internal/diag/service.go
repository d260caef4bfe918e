// Package diag reports on and repairs the relationship between the two
// storage substrates.
package diag

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/mediaurl"
	"github.com/townsquare/media_server/internal/resolve"
	"github.com/townsquare/media_server/internal/storage"
)

// CategoryReport compares one category's inventory across substrates.
type CategoryReport struct {
	Category       category.Category `json:"category"`
	Bucket         string            `json:"bucket"`
	Object         int               `json:"object"`
	Filesystem     int               `json:"filesystem"`
	ObjectOnly     int               `json:"object_only"`
	FilesystemOnly int               `json:"filesystem_only"`
	Errors         []string          `json:"errors,omitempty"`
}

// Report is the full diagnostics snapshot.
type Report struct {
	GeneratedAt              int64            `json:"generated_at"`
	Categories               []CategoryReport `json:"categories"`
	UnresolvedMirrorFailures int              `json:"unresolved_mirror_failures"`
	PendingMigrations        int              `json:"pending_migrations"`
}

// PurgeResult lists every copy removed for one reference.
type PurgeResult struct {
	Category category.Category `json:"category"`
	Filename string            `json:"filename"`
	Removed  []string          `json:"removed"`
}

type DiagService struct {
	object  storage.Backend
	fs      storage.Backend
	journal journal.Repository
	options resolve.Options
}

func NewDiagService(object, fs storage.Backend, repo journal.Repository, options resolve.Options) *DiagService {
	if len(options.Roots) == 0 {
		options.Roots = []string{storage.RootDev}
	}
	return &DiagService{
		object:  object,
		fs:      fs,
		journal: repo,
		options: options,
	}
}

// Report inventories every category on both substrates and summarizes the
// journal backlog. Listing failures degrade the affected row instead of
// failing the whole report.
func (s *DiagService) Report(ctx context.Context) *Report {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report := &Report{GeneratedAt: time.Now().UnixMilli()}

	for _, d := range category.All() {
		row := CategoryReport{Category: d.Category, Bucket: d.Bucket}

		objectNames := make(map[string]bool)
		if s.objectEnabled() {
			names, err := s.object.ListByPrefix(ctx, d.Category, "")
			if err != nil {
				row.Errors = append(row.Errors, err.Error())
			}
			for _, name := range names {
				objectNames[name] = true
			}
		}

		fsNames := make(map[string]bool)
		names, err := s.fs.ListByPrefix(ctx, d.Category, "")
		if err != nil {
			row.Errors = append(row.Errors, err.Error())
		}
		for _, name := range names {
			fsNames[name] = true
		}

		row.Object = len(objectNames)
		row.Filesystem = len(fsNames)
		for name := range objectNames {
			if !fsNames[name] {
				row.ObjectOnly++
			}
		}
		for name := range fsNames {
			if !objectNames[name] {
				row.FilesystemOnly++
			}
		}
		report.Categories = append(report.Categories, row)
	}

	if count, err := s.journal.CountUnresolvedMirrorFailures(); err == nil {
		report.UnresolvedMirrorFailures = count
	}
	if count, err := s.journal.CountPendingMigrations(); err == nil {
		report.PendingMigrations = count
	}
	return report
}

// Purge removes every stored copy of a reference, thumbnails included, and
// marks the journal. Purging an already-absent file succeeds with an empty
// removal list.
func (s *DiagService) Purge(ctx context.Context, raw string) (*PurgeResult, error) {
	cat, filename, ok := mediaurl.Parse(raw, "")
	if !ok {
		filename = mediaurl.ExtractFilename(raw)
		if filename == "" || !category.KnownExtension(path.Ext(filename)) {
			return nil, fmt.Errorf("no media reference in %q: %w", raw, storage.ErrNotFound)
		}
		cat = category.General
	}

	desc := category.Lookup(cat)
	names := []string{filename}
	if desc.Thumbnails {
		names = append(names, strings.TrimSuffix(filename, path.Ext(filename))+"_thumb.jpg")
	}

	result := &PurgeResult{Category: desc.Category, Filename: filename, Removed: []string{}}
	for _, name := range names {
		key := storage.MediaKey{Category: desc.Category, Filename: name}
		for _, cand := range resolve.Candidates(key, s.objectEnabled(), s.options.Roots) {
			backend := s.backendFor(cand.Kind)
			found, err := backend.Exists(ctx, cand)
			if err != nil || !found {
				continue
			}
			if err := backend.Delete(ctx, cand); err != nil {
				log.Warn().Err(err).Str("location", cand.String()).Msg("[DIAG] Failed to remove copy")
				continue
			}
			result.Removed = append(result.Removed, cand.String())
		}
	}

	if err := s.journal.MarkUploadDeleted(desc.Category, filename, time.Now().UnixMilli()); err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("[DIAG] Failed to journal deletion")
	}

	log.Info().Str("file", filename).Int("removed", len(result.Removed)).Msg("[DIAG] Purged media")
	return result, nil
}

func (s *DiagService) objectEnabled() bool {
	return s.object != nil && s.options.ObjectEnabled
}

func (s *DiagService) backendFor(kind storage.Kind) storage.Backend {
	if kind == storage.KindObject {
		return s.object
	}
	return s.fs
}
