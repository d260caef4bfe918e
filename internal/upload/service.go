package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/mediaurl"
	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/storage"
)

// Request describes one incoming file. Category is resolved by the caller;
// SizeBytes is the declared size, -1 when unknown.
type Request struct {
	Category         category.Category
	FieldHint        string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
}

// Result is what clients get back: the canonical URL plus everything the
// journal recorded about the file.
type Result struct {
	URL          string            `json:"url"`
	Filename     string            `json:"filename"`
	Category     category.Category `json:"category"`
	ContentType  string            `json:"content_type"`
	SizeBytes    int64             `json:"size_bytes"`
	Width        *int              `json:"width,omitempty"`
	Height       *int              `json:"height,omitempty"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`

	Location storage.Location `json:"-"`
}

// UploadService validates, names, and stores incoming files. Writes go to
// the object store first when one is configured, with exactly one
// filesystem fallback.
type UploadService struct {
	object        storage.Backend
	fs            storage.Backend
	journal       journal.Repository
	objectTimeout time.Duration
	fsTimeout     time.Duration
}

func NewUploadService(object, fs storage.Backend, repo journal.Repository, config *storage.Config) *UploadService {
	objectTimeout := time.Duration(config.Object.TimeoutSec) * time.Second
	if objectTimeout <= 0 {
		objectTimeout = 10 * time.Second
	}
	fsTimeout := time.Duration(config.Filesystem.TimeoutSec) * time.Second
	if fsTimeout <= 0 {
		fsTimeout = 2 * time.Second
	}

	return &UploadService{
		object:        object,
		fs:            fs,
		journal:       repo,
		objectTimeout: objectTimeout,
		fsTimeout:     fsTimeout,
	}
}

// Upload stores one file. Validation happens before a single byte is read
// from data.
func (s *UploadService) Upload(ctx context.Context, request *Request, data io.Reader) (*Result, error) {
	desc := category.Lookup(request.Category)

	if !desc.Allows(request.ContentType) {
		metrics.UploadRejectionsTotal.WithLabelValues("invalid_type").Inc()
		return nil, fmt.Errorf("content type %q not allowed for category %s: %w", request.ContentType, desc.Category, storage.ErrInvalidType)
	}
	if request.SizeBytes > desc.MaxFileSize {
		metrics.UploadRejectionsTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("declared size %d exceeds %d byte limit: %w", request.SizeBytes, desc.MaxFileSize, storage.ErrTooLarge)
	}

	buf, err := readLimited(data, desc.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			metrics.UploadRejectionsTotal.WithLabelValues("too_large").Inc()
		}
		return nil, err
	}

	ext := strings.ToLower(path.Ext(request.OriginalFilename))
	if !category.KnownExtension(ext) {
		ext = category.ExtensionForContentType(request.ContentType)
	}
	filename, err := Generate(request.FieldHint, ext)
	if err != nil {
		return nil, err
	}
	key := storage.MediaKey{Category: desc.Category, Filename: filename}

	primary, loc, err := s.store(ctx, key, buf, request.ContentType)
	if err != nil {
		return nil, err
	}

	if desc.MirrorToFS && primary == s.object {
		s.mirrorToFilesystem(ctx, key, loc, buf, request.ContentType)
	}

	width, height := probeDimensions(buf, request.ContentType)

	thumbName := ""
	if desc.Thumbnails {
		thumbName = s.writeThumbnail(ctx, primary, key, buf)
	}

	s.journalUpload(key, request.ContentType, primary, loc, int64(len(buf)), width, height, thumbName)
	metrics.UploadsTotal.WithLabelValues(string(desc.Category), string(primary.Kind())).Inc()
	log.Info().
		Str("file", key.String()).
		Str("backend", string(primary.Kind())).
		Int("size", len(buf)).
		Msg("[UPLOAD] Stored file")

	result := &Result{
		URL:         mediaurl.Canonical(desc.Category, filename),
		Filename:    filename,
		Category:    desc.Category,
		ContentType: request.ContentType,
		SizeBytes:   int64(len(buf)),
		Width:       width,
		Height:      height,
		Location:    loc,
	}
	if thumbName != "" {
		result.ThumbnailURL = mediaurl.Canonical(desc.Category, thumbName)
	}
	return result, nil
}

// store writes the primary copy: object store first, filesystem as the one
// fallback. A fallback write is journaled so the reconciler can move the
// file forward later.
func (s *UploadService) store(ctx context.Context, key storage.MediaKey, buf []byte, contentType string) (storage.Backend, storage.Location, error) {
	if s.object != nil {
		putCtx, cancel := context.WithTimeout(ctx, s.objectTimeout)
		loc, err := s.object.Put(putCtx, key, bytes.NewReader(buf), int64(len(buf)), contentType)
		cancel()
		if err == nil {
			return s.object, loc, nil
		}
		metrics.UploadFallbacksTotal.Inc()
		log.Warn().Err(err).Str("file", key.String()).Msg("[UPLOAD] Object store write failed, falling back to filesystem")
	}

	putCtx, cancel := context.WithTimeout(ctx, s.fsTimeout)
	loc, err := s.fs.Put(putCtx, key, bytes.NewReader(buf), int64(len(buf)), contentType)
	cancel()
	if err != nil {
		return nil, storage.Location{}, fmt.Errorf("failed to store %s: %w", key, err)
	}

	s.journalPendingMigration(key, loc)
	return s.fs, loc, nil
}

func (s *UploadService) mirrorToFilesystem(ctx context.Context, key storage.MediaKey, source storage.Location, buf []byte, contentType string) {
	putCtx, cancel := context.WithTimeout(ctx, s.fsTimeout)
	defer cancel()

	if _, err := s.fs.Put(putCtx, key, bytes.NewReader(buf), int64(len(buf)), contentType); err != nil {
		log.Warn().Err(err).Str("file", key.String()).Msg("[UPLOAD] Filesystem mirror failed")
		failure := &journal.MirrorFailure{
			ID:            uuid.NewString(),
			Category:      key.Category,
			Filename:      key.Filename,
			SourceBackend: string(source.Kind),
			SourceStore:   source.Store,
			SourcePath:    source.Path,
			Target:        string(storage.KindFilesystem),
			Reason:        err.Error(),
			CreatedAt:     timeNowFunc().UnixMilli(),
		}
		if journalErr := s.journal.RecordMirrorFailure(failure); journalErr != nil {
			log.Warn().Err(journalErr).Str("file", key.String()).Msg("[UPLOAD] Failed to journal mirror failure")
		}
	}
}

func (s *UploadService) writeThumbnail(ctx context.Context, primary storage.Backend, key storage.MediaKey, buf []byte) string {
	thumb, err := renderThumbnail(buf)
	if err != nil {
		log.Warn().Err(err).Str("file", key.String()).Msg("[UPLOAD] Thumbnail generation failed")
		return ""
	}

	timeout := s.fsTimeout
	if primary.Kind() == storage.KindObject {
		timeout = s.objectTimeout
	}
	putCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thumbKey := storage.MediaKey{Category: key.Category, Filename: thumbnailName(key.Filename)}
	if _, err := primary.Put(putCtx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		log.Warn().Err(err).Str("file", thumbKey.String()).Msg("[UPLOAD] Thumbnail write failed")
		return ""
	}
	return thumbKey.Filename
}

func (s *UploadService) journalPendingMigration(key storage.MediaKey, loc storage.Location) {
	migration := &journal.PendingMigration{
		ID:            uuid.NewString(),
		Category:      key.Category,
		Filename:      key.Filename,
		SourceBackend: string(loc.Kind),
		SourceStore:   loc.Store,
		SourcePath:    loc.Path,
		CreatedAt:     timeNowFunc().UnixMilli(),
	}
	if err := s.journal.RecordPendingMigration(migration); err != nil {
		log.Warn().Err(err).Str("file", key.String()).Msg("[UPLOAD] Failed to journal pending migration")
	}
}

func (s *UploadService) journalUpload(key storage.MediaKey, contentType string, primary storage.Backend, loc storage.Location, size int64, width, height *int, thumbName string) {
	record := &journal.Upload{
		ID:          uuid.NewString(),
		Category:    key.Category,
		Filename:    key.Filename,
		ContentType: contentType,
		SizeBytes:   size,
		Backend:     string(primary.Kind()),
		Store:       loc.Store,
		Path:        loc.Path,
		Width:       width,
		Height:      height,
		CreatedAt:   timeNowFunc().UnixMilli(),
	}
	if thumbName != "" {
		record.ThumbnailPath = storage.MediaKey{Category: key.Category, Filename: thumbName}.Path()
	}
	if err := s.journal.RecordUpload(record); err != nil {
		log.Warn().Err(err).Str("file", key.String()).Msg("[UPLOAD] Failed to journal upload")
	}
}

// readLimited buffers the upload while enforcing the category ceiling on
// the bytes actually received, not just the declared size.
func readLimited(data io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, data, limit+1)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("upload exceeds %d byte limit: %w", limit, storage.ErrTooLarge)
	}
	return buf.Bytes(), nil
}
