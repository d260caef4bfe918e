package upload

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/journal"
	"github.com/townsquare/media_server/internal/resolve"
	"github.com/townsquare/media_server/internal/storage"
)

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	assert.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func TestUpload_ShouldRoundTripThroughResolution(t *testing.T) {
	// given every category and a working object store
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	service := NewUploadService(object, fs, journal.NewMemoryJournalRepository(), &storage.Config{})
	resolver := resolve.NewResolver(object, fs, nil, resolve.Options{
		ObjectEnabled: true,
		Roots:         []string{storage.RootDev, storage.RootProd},
	})

	for _, d := range category.All() {
		content := pngBytes(t, 4, 4)

		// when the file is uploaded and its canonical URL resolved
		result, err := service.Upload(context.Background(), &Request{
			Category:         d.Category,
			FieldHint:        "file",
			OriginalFilename: "original.png",
			ContentType:      "image/png",
			SizeBytes:        int64(len(content)),
		}, bytes.NewReader(content))
		assert.NoError(t, err, "category %s", d.Category)

		hit, _, err := resolver.Resolve(context.Background(), result.URL)
		assert.NoError(t, err, "category %s", d.Category)

		// then the exact uploaded bytes come back
		got, err := io.ReadAll(hit.Body)
		assert.NoError(t, hit.Body.Close())
		assert.NoError(t, err)
		assert.Equal(t, content, got, "category %s", d.Category)
		assert.Equal(t, "image/png", hit.ContentType)
	}
}

func TestUpload_ShouldServeAvatarScenarioEndToEnd(t *testing.T) {
	// given a 2 MB JPEG going into the avatar category
	object := newFakeBackend(storage.KindObject)
	fs := newFakeBackend(storage.KindFilesystem)
	service := NewUploadService(object, fs, journal.NewMemoryJournalRepository(), &storage.Config{})
	resolver := resolve.NewResolver(object, fs, nil, resolve.Options{
		ObjectEnabled: true,
		Roots:         []string{storage.RootDev, storage.RootProd},
	})

	content := jpegBytes(t, 1200, 1200)
	for len(content) < 2<<20 {
		content = append(content, content...)
	}
	content = content[:2<<20]

	// when
	result, err := service.Upload(context.Background(), &Request{
		Category:         category.Avatar,
		FieldHint:        "avatar",
		OriginalFilename: "me.jpg",
		ContentType:      "image/jpeg",
		SizeBytes:        int64(len(content)),
	}, bytes.NewReader(content))

	// then the canonical URL has the documented shape
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^/api/storage-proxy/AVATARS/avatars/avatar-\d+-[0-9a-f]{8}\.jpg$`), result.URL)

	// and resolving that exact URL returns the same bytes
	hit, _, err := resolver.Resolve(context.Background(), result.URL)
	assert.NoError(t, err)
	got, err := io.ReadAll(hit.Body)
	assert.NoError(t, hit.Body.Close())
	assert.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "image/jpeg", hit.ContentType)
}
