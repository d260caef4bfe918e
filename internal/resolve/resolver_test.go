package resolve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/mirror"
	"github.com/townsquare/media_server/internal/storage"
)

type fakeBackend struct {
	kind       storage.Kind
	mu         sync.Mutex
	files      map[string][]byte
	failExists bool
}

func newFakeBackend(kind storage.Kind) *fakeBackend {
	return &fakeBackend{kind: kind, files: make(map[string][]byte)}
}

func locName(loc storage.Location) string {
	return loc.Store + "/" + loc.Path
}

func (b *fakeBackend) seed(loc storage.Location, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[locName(loc)] = []byte(content)
}

func (b *fakeBackend) Kind() storage.Kind {
	return b.kind
}

func (b *fakeBackend) Put(_ context.Context, key storage.MediaKey, data io.Reader, _ int64, _ string) (storage.Location, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return storage.Location{}, err
	}
	loc := key.FilesystemLocation(storage.RootDev)
	if b.kind == storage.KindObject {
		loc = key.ObjectLocation()
	}
	b.mu.Lock()
	b.files[locName(loc)] = content
	b.mu.Unlock()
	return loc, nil
}

func (b *fakeBackend) Open(_ context.Context, loc storage.Location) (io.ReadCloser, error) {
	b.mu.Lock()
	content, ok := b.files[locName(loc)]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc, storage.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *fakeBackend) Exists(_ context.Context, loc storage.Location) (bool, error) {
	if b.failExists {
		return false, fmt.Errorf("backend offline: %w", storage.ErrUnavailable)
	}
	b.mu.Lock()
	_, ok := b.files[locName(loc)]
	b.mu.Unlock()
	return ok, nil
}

func (b *fakeBackend) Delete(_ context.Context, loc storage.Location) error {
	b.mu.Lock()
	delete(b.files, locName(loc))
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) ListByPrefix(_ context.Context, cat category.Category, prefix string) ([]string, error) {
	subdir := category.Lookup(cat).Subdir + "/"

	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for name := range b.files {
		_, rel, ok := strings.Cut(name, "/")
		if !ok || !strings.HasPrefix(rel, subdir) {
			continue
		}
		filename := strings.TrimPrefix(rel, subdir)
		if strings.HasPrefix(filename, prefix) {
			names = append(names, filename)
		}
	}
	return names, nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []mirror.Task
}

func (s *fakeScheduler) Enqueue(task mirror.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return true
}

func (s *fakeScheduler) enqueued() []mirror.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mirror.Task(nil), s.tasks...)
}

func bothRoots() []string {
	return []string{storage.RootDev, storage.RootProd}
}

func TestResolve_ShouldFindProdRootCopiesAndScheduleMirror(t *testing.T) {
	// given a file that only survives under the prod filesystem root
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	scheduler := &fakeScheduler{}
	src := storage.Location{Kind: storage.KindFilesystem, Store: storage.RootProd, Path: "avatars/avatar-1-aa.png"}
	fs.seed(src, "avatar-bytes")

	resolver := NewResolver(object, fs, scheduler, Options{ObjectEnabled: true, Roots: bothRoots()})

	// when
	hit, attempts, err := resolver.Resolve(context.Background(), "/api/storage-proxy/AVATARS/avatars/avatar-1-aa.png")

	// then
	assert.NoError(t, err)
	assert.Equal(t, src, hit.Location)
	assert.Equal(t, "image/png", hit.ContentType)
	body, _ := io.ReadAll(hit.Body)
	hit.Body.Close()
	assert.Equal(t, "avatar-bytes", string(body))
	// object and dev root were probed first
	assert.Len(t, attempts, 3)
	assert.True(t, attempts[2].Found)

	tasks := scheduler.enqueued()
	assert.Len(t, tasks, 1)
	assert.Equal(t, storage.MediaKey{Category: category.Avatar, Filename: "avatar-1-aa.png"}, tasks[0].Key)
	assert.Equal(t, src, tasks[0].Source)
}

func TestResolve_ShouldReportEveryCandidateOnMiss(t *testing.T) {
	// given an extensionless avatar reference that exists nowhere
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	resolver := NewResolver(object, fs, &fakeScheduler{}, Options{ObjectEnabled: true, Roots: bothRoots()})

	// when
	hit, attempts, err := resolver.Resolve(context.Background(), "/api/storage-proxy/AVATARS/avatars/avatar-legacy")

	// then the full grid was searched: 6 names x 3 subdirs x 3 backends
	assert.Nil(t, hit)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, attempts, 54)

	seen := make(map[string]bool)
	for _, attempt := range attempts {
		assert.False(t, attempt.Found)
		name := attempt.Location.String()
		assert.False(t, seen[name], "duplicate candidate %s", name)
		seen[name] = true
	}
}

func TestResolve_ShouldTryExtensionVariants(t *testing.T) {
	// given a stored file whose reference lost its extension
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	scheduler := &fakeScheduler{}
	canonical := storage.MediaKey{Category: category.Avatar, Filename: "avatar-2-bb.jpg"}.ObjectLocation()
	object.seed(canonical, "jpg-bytes")

	resolver := NewResolver(object, fs, scheduler, Options{ObjectEnabled: true, Roots: bothRoots()})

	// when
	hit, _, err := resolver.Resolve(context.Background(), "/api/storage-proxy/AVATARS/avatars/avatar-2-bb")

	// then the .jpg variant is found and, being canonical, not re-mirrored
	assert.NoError(t, err)
	assert.Equal(t, canonical, hit.Location)
	assert.Equal(t, "image/jpeg", hit.ContentType)
	assert.Empty(t, scheduler.enqueued())
}

func TestResolve_ShouldContinuePastTransientBackendErrors(t *testing.T) {
	// given an object store that errors on every probe
	object := newFakeBackend(storage.KindObject)
	object.failExists = true
	fs := newFakeBackend(storage.KindFilesystem)
	src := storage.MediaKey{Category: category.Forum, Filename: "media-1-aa.png"}.FilesystemLocation(storage.RootDev)
	fs.seed(src, "post-bytes")

	resolver := NewResolver(object, fs, &fakeScheduler{}, Options{ObjectEnabled: true, Roots: bothRoots()})

	// when
	hit, attempts, err := resolver.Resolve(context.Background(), "/forum-media/media-1-aa.png")

	// then the filesystem copy is still served
	assert.NoError(t, err)
	assert.Equal(t, src, hit.Location)
	assert.NotEmpty(t, attempts[0].Error)
	assert.True(t, attempts[1].Found)
}

func TestResolve_ShouldSearchGeneralForUnrecognizedMediaPaths(t *testing.T) {
	// given a media filename under a path no category claims
	fs := newFakeBackend(storage.KindFilesystem)
	src := storage.Location{Kind: storage.KindFilesystem, Store: storage.RootDev, Path: "general/pic.jpg"}
	fs.seed(src, "pic-bytes")

	resolver := NewResolver(nil, fs, nil, Options{Roots: []string{storage.RootDev}})

	// when
	hit, _, err := resolver.Resolve(context.Background(), "/mystery/pic.jpg")

	// then
	assert.NoError(t, err)
	assert.Equal(t, src, hit.Location)
}

func TestResolve_ShouldRejectNonMediaReferences(t *testing.T) {
	// given
	resolver := NewResolver(nil, newFakeBackend(storage.KindFilesystem), nil, Options{})

	// when
	hit, attempts, err := resolver.Resolve(context.Background(), "/app/dashboard")

	// then no backend was touched
	assert.Nil(t, hit)
	assert.Empty(t, attempts)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocate_ShouldNotScheduleMirrorWork(t *testing.T) {
	// given a file sitting on the prod root
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	scheduler := &fakeScheduler{}
	src := storage.Location{Kind: storage.KindFilesystem, Store: storage.RootProd, Path: "vendor-media/vendorLogo-1-aa.png"}
	fs.seed(src, "logo-bytes")

	resolver := NewResolver(object, fs, scheduler, Options{ObjectEnabled: true, Roots: bothRoots()})

	// when
	key, loc, found := resolver.Locate(context.Background(), "/vendor-media/vendorLogo-1-aa.png")

	// then
	assert.True(t, found)
	assert.Equal(t, src, loc)
	assert.Equal(t, storage.MediaKey{Category: category.Vendor, Filename: "vendorLogo-1-aa.png"}, key)
	assert.Empty(t, scheduler.enqueued())
}
