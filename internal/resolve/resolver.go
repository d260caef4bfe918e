// Package resolve turns media references into readable bytes by searching
// the bounded candidate grid across both storage substrates.
package resolve

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/mediaurl"
	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/mirror"
	"github.com/townsquare/media_server/internal/storage"
)

// Attempt records one probed candidate, for diagnostics.
type Attempt struct {
	Location storage.Location `json:"location"`
	Found    bool             `json:"found"`
	Error    string           `json:"error,omitempty"`
}

// Options bounds the search.
type Options struct {
	ObjectEnabled     bool
	Roots             []string
	FilesystemTimeout time.Duration
	ObjectTimeout     time.Duration
}

// Scheduler accepts opportunistic mirror work discovered during
// resolution.
type Scheduler interface {
	Enqueue(task mirror.Task) bool
}

// Hit is a successfully resolved file ready to stream.
type Hit struct {
	Body        io.ReadCloser
	ContentType string
	Location    storage.Location
}

type Resolver struct {
	object  storage.Backend
	fs      storage.Backend
	mirrors Scheduler
	options Options
}

func NewResolver(object, fs storage.Backend, mirrors Scheduler, options Options) *Resolver {
	if options.FilesystemTimeout <= 0 {
		options.FilesystemTimeout = 2 * time.Second
	}
	if options.ObjectTimeout <= 0 {
		options.ObjectTimeout = 10 * time.Second
	}
	if len(options.Roots) == 0 {
		options.Roots = []string{storage.RootDev}
	}

	return &Resolver{
		object:  object,
		fs:      fs,
		mirrors: mirrors,
		options: options,
	}
}

// Resolve finds the first readable copy of a reference. The attempt list
// covers every candidate probed, whether or not a hit was found; a
// transient backend error never ends the search early.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Hit, []Attempt, error) {
	key, ok := r.keyFor(raw)
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("miss").Inc()
		return nil, nil, fmt.Errorf("no media reference in %q: %w", raw, storage.ErrNotFound)
	}

	candidates := Candidates(key, r.objectEnabled(), r.options.Roots)
	attempts := make([]Attempt, 0, len(candidates))

	for _, cand := range candidates {
		found, err := r.probe(ctx, cand)
		if err != nil {
			attempts = append(attempts, Attempt{Location: cand, Error: err.Error()})
			continue
		}
		if !found {
			attempts = append(attempts, Attempt{Location: cand})
			continue
		}

		body, err := r.open(ctx, cand)
		if err != nil {
			// the copy disappeared or turned unreadable between probe
			// and open; keep searching
			attempts = append(attempts, Attempt{Location: cand, Error: err.Error()})
			continue
		}
		attempts = append(attempts, Attempt{Location: cand, Found: true})
		metrics.ResolutionCandidates.Observe(float64(len(attempts)))

		hitKey := storage.MediaKey{Category: key.Category, Filename: path.Base(cand.Path)}
		r.scheduleMirror(hitKey, cand)

		outcome := "filesystem"
		if cand.Kind == storage.KindObject {
			outcome = "object"
		}
		metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
		log.Debug().Str("file", hitKey.String()).Str("location", cand.String()).Int("attempts", len(attempts)).Msg("[RESOLVE] Hit")

		return &Hit{
			Body:        body,
			ContentType: category.ContentTypeByName(cand.Path),
			Location:    cand,
		}, attempts, nil
	}

	metrics.ResolutionCandidates.Observe(float64(len(attempts)))
	metrics.ResolutionsTotal.WithLabelValues("miss").Inc()
	return nil, attempts, fmt.Errorf("%s not found after %d candidates: %w", key, len(attempts), storage.ErrNotFound)
}

// Locate finds where a reference currently lives without opening the file
// or scheduling mirror work. Presigning uses it.
func (r *Resolver) Locate(ctx context.Context, raw string) (storage.MediaKey, storage.Location, bool) {
	key, ok := r.keyFor(raw)
	if !ok {
		return storage.MediaKey{}, storage.Location{}, false
	}

	for _, cand := range Candidates(key, r.objectEnabled(), r.options.Roots) {
		if found, err := r.probe(ctx, cand); err == nil && found {
			return storage.MediaKey{Category: key.Category, Filename: path.Base(cand.Path)}, cand, true
		}
	}
	return storage.MediaKey{}, storage.Location{}, false
}

// keyFor maps a raw reference to the key to search for. Unrecognized
// references with a media filename fall back to a general-category search;
// anything else is not resolvable.
func (r *Resolver) keyFor(raw string) (storage.MediaKey, bool) {
	if cat, filename, ok := mediaurl.Parse(raw, ""); ok {
		return storage.MediaKey{Category: cat, Filename: filename}, true
	}

	filename := mediaurl.ExtractFilename(raw)
	if filename == "" || !category.KnownExtension(path.Ext(filename)) {
		return storage.MediaKey{}, false
	}
	return storage.MediaKey{Category: category.General, Filename: filename}, true
}

func (r *Resolver) objectEnabled() bool {
	return r.options.ObjectEnabled && r.object != nil
}

func (r *Resolver) backendFor(kind storage.Kind) storage.Backend {
	if kind == storage.KindObject {
		return r.object
	}
	return r.fs
}

func (r *Resolver) timeoutFor(kind storage.Kind) time.Duration {
	if kind == storage.KindObject {
		return r.options.ObjectTimeout
	}
	return r.options.FilesystemTimeout
}

// probe checks one candidate under its own deadline, detached from the
// request context so a client disconnect cannot abort the search midway.
func (r *Resolver) probe(ctx context.Context, loc storage.Location) (bool, error) {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeoutFor(loc.Kind))
	defer cancel()
	return r.backendFor(loc.Kind).Exists(probeCtx, loc)
}

// open deliberately carries no deadline: the returned body is streamed to
// the client after this function returns.
func (r *Resolver) open(ctx context.Context, loc storage.Location) (io.ReadCloser, error) {
	return r.backendFor(loc.Kind).Open(context.WithoutCancel(ctx), loc)
}

func (r *Resolver) scheduleMirror(key storage.MediaKey, hit storage.Location) {
	if r.mirrors == nil {
		return
	}
	if hit == r.canonical(key) {
		return
	}
	r.mirrors.Enqueue(mirror.Task{Key: key, Source: hit})
}

func (r *Resolver) canonical(key storage.MediaKey) storage.Location {
	if r.objectEnabled() {
		return key.ObjectLocation()
	}
	return key.FilesystemLocation(storage.RootDev)
}
