package proxy

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/storage"
)

type fakeLocator struct {
	key   storage.MediaKey
	loc   storage.Location
	found bool
}

func (l *fakeLocator) Locate(_ context.Context, _ string) (storage.MediaKey, storage.Location, bool) {
	return l.key, l.loc, l.found
}

type fakePresigner struct {
	lastLoc storage.Location
	lastTTL time.Duration
}

func (p *fakePresigner) PresignGet(_ context.Context, loc storage.Location, ttl time.Duration) (string, error) {
	p.lastLoc = loc
	p.lastTTL = ttl
	return "https://minio.example.com/signed", nil
}

func TestPresign_ShouldUseNativeURLsForObjectCopies(t *testing.T) {
	// given a file living on the object store
	privateKey, _ := testKeys(t)
	key := storage.MediaKey{Category: category.Forum, Filename: "media-1-aa.png"}
	locator := &fakeLocator{key: key, loc: key.ObjectLocation(), found: true}
	presigner := &fakePresigner{}
	service := NewProxyService(locator, presigner, privateKey, &Config{PresignTTLCeilingSec: 3600})

	// when
	result, err := service.Presign(context.Background(), "/forum-media/media-1-aa.png", 600)

	// then
	assert.NoError(t, err)
	assert.Equal(t, "object", result.Mode)
	assert.Equal(t, "https://minio.example.com/signed", result.URL)
	assert.Equal(t, 10*time.Minute, presigner.lastTTL)
	assert.Equal(t, key.ObjectLocation(), presigner.lastLoc)
}

func TestPresign_ShouldRejectTTLAboveCeiling(t *testing.T) {
	// given
	privateKey, _ := testKeys(t)
	key := storage.MediaKey{Category: category.Forum, Filename: "media-1-aa.png"}
	locator := &fakeLocator{key: key, loc: key.ObjectLocation(), found: true}
	presigner := &fakePresigner{}
	service := NewProxyService(locator, presigner, privateKey, &Config{PresignTTLCeilingSec: 3600})

	// when a day-long grant is requested
	_, err := service.Presign(context.Background(), "/forum-media/media-1-aa.png", 86400)

	// then the request is refused, not silently shortened
	assert.ErrorIs(t, err, ErrTTLTooLong)
	assert.Zero(t, presigner.lastTTL)
}

func TestPresign_ShouldMintTokensForFilesystemCopies(t *testing.T) {
	// given a file that only exists on disk
	privateKey, publicKey := testKeys(t)
	key := storage.MediaKey{Category: category.Vendor, Filename: "vendorLogo-1-aa.png"}
	locator := &fakeLocator{key: key, loc: key.FilesystemLocation(storage.RootDev), found: true}
	service := NewProxyService(locator, &fakePresigner{}, privateKey, &Config{})

	// when
	result, err := service.Presign(context.Background(), "/vendor-media/vendorLogo-1-aa.png", 0)

	// then the grant routes through the download endpoint
	assert.NoError(t, err)
	assert.Equal(t, "token", result.Mode)
	assert.True(t, strings.HasPrefix(result.URL, DownloadPath+"?token="))

	raw := strings.TrimPrefix(result.URL, DownloadPath+"?token=")
	token, err := url.QueryUnescape(raw)
	assert.NoError(t, err)
	cat, filename, err := VerifyDownloadToken(publicKey, token)
	assert.NoError(t, err)
	assert.Equal(t, category.Vendor, cat)
	assert.Equal(t, "vendorLogo-1-aa.png", filename)
}

func TestPresign_ShouldReportMissingMedia(t *testing.T) {
	// given
	privateKey, _ := testKeys(t)
	service := NewProxyService(&fakeLocator{}, &fakePresigner{}, privateKey, &Config{})

	// when
	_, err := service.Presign(context.Background(), "/forum-media/gone.png", 60)

	// then
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
