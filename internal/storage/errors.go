package storage

import "errors"

// Error taxonomy shared by the upload and resolution pipelines. Backends and
// pipelines wrap these with fmt.Errorf so callers can branch with errors.Is.
var (
	// ErrInvalidType rejects a content type outside the category allow-list.
	ErrInvalidType = errors.New("content type not allowed")

	// ErrTooLarge rejects content above the category size ceiling.
	ErrTooLarge = errors.New("file too large")

	// ErrUnavailable marks a transient backend failure. Upload falls back to
	// the alternate backend exactly once; resolution moves on to the next
	// candidate.
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrNotFound means the probed location (or every candidate) holds no
	// bytes.
	ErrNotFound = errors.New("media not found")
)
