package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup_ShouldFallBackToGeneralForUnknownCategory(t *testing.T) {
	// when
	d := Lookup(Category("carrier-pigeon"))

	// then
	assert.NotNil(t, d)
	assert.Equal(t, General, d.Category)
	assert.Equal(t, "UPLOADS", d.Bucket)
}

func TestLookup_ShouldReturnRegisteredDescriptor(t *testing.T) {
	// when
	d := Lookup(Avatar)

	// then
	assert.Equal(t, "AVATARS", d.Bucket)
	assert.Equal(t, "avatars", d.Subdir)
	assert.Equal(t, int64(5<<20), d.MaxFileSize)
	assert.True(t, d.Thumbnails)
}

func TestByBucket_ShouldMatchCaseInsensitively(t *testing.T) {
	// when
	upper, okUpper := ByBucket("BANNERS")
	lower, okLower := ByBucket("banners")
	_, okUnknown := ByBucket("ATTIC")

	// then
	assert.True(t, okUpper)
	assert.True(t, okLower)
	assert.Equal(t, Banner, upper.Category)
	assert.Equal(t, Banner, lower.Category)
	assert.False(t, okUnknown)
}

func TestBySubdir_ShouldPreferPrimaryOwnerOverAlternate(t *testing.T) {
	// "forum-media" is the forum primary but also a content alternate

	// when
	d, ok := BySubdir("forum-media")

	// then
	assert.True(t, ok)
	assert.Equal(t, Forum, d.Category)
}

func TestBySubdir_ShouldMatchLegacyAlternates(t *testing.T) {
	// when
	d, ok := BySubdir("profile-images")

	// then
	assert.True(t, ok)
	assert.Equal(t, Avatar, d.Category)
}

func TestAllows_ShouldRejectTypesOutsideTheCategoryList(t *testing.T) {
	// given
	avatars := Lookup(Avatar)
	general := Lookup(General)

	// then
	assert.True(t, avatars.Allows("image/jpeg"))
	assert.True(t, avatars.Allows("image/PNG; charset=binary"))
	assert.False(t, avatars.Allows("video/mp4"))
	assert.False(t, avatars.Allows("text/csv"))
	assert.True(t, general.Allows("text/csv"))
	assert.True(t, general.Allows("application/pdf"))
	assert.False(t, general.Allows("application/zip"))
}

func TestSubdirs_ShouldListPrimaryFirst(t *testing.T) {
	// when
	dirs := Lookup(Calendar).Subdirs()

	// then
	assert.Equal(t, []string{"calendar-media", "calendar", "events"}, dirs)
}

func TestResolve_ShouldHonorExplicitOverrideFirst(t *testing.T) {
	// given
	hints := Hints{Override: Banner, Referer: "https://example.com/forum/thread/12"}

	// when
	c := Resolve("mediaFile", hints)

	// then
	assert.Equal(t, Banner, c)
}

func TestResolve_ShouldIgnoreUnknownOverride(t *testing.T) {
	// when
	c := Resolve("avatar", Hints{Override: Category("polaroid")})

	// then
	assert.Equal(t, Avatar, c)
}

func TestResolve_ShouldMatchFieldNamesExactly(t *testing.T) {
	assert.Equal(t, Avatar, Resolve("avatar", Hints{}))
	assert.Equal(t, Banner, Resolve("bannerImage", Hints{}))
	assert.Equal(t, RealEstate, Resolve("listingPhoto", Hints{}))
	assert.Equal(t, General, Resolve("file", Hints{}))
}

func TestResolve_ShouldFallBackToRefererHeuristics(t *testing.T) {
	// given
	hints := Hints{Referer: "https://town.example.com/forum/new-topic"}

	// when
	c := Resolve("mediaFile", hints)

	// then
	assert.Equal(t, Forum, c)
}

func TestResolve_ShouldDefaultToGeneral(t *testing.T) {
	// when
	c := Resolve("attachment-7", Hints{Referer: "https://town.example.com/about"})

	// then
	assert.Equal(t, General, c)
}

func TestContentTypeByName_ShouldDeriveFromExtension(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeByName("avatar-123-abc.JPG"))
	assert.Equal(t, "video/mp4", ContentTypeByName("clip-1-2.mp4"))
	assert.Equal(t, "text/csv", ContentTypeByName("import-9.csv"))
	assert.Equal(t, "application/octet-stream", ContentTypeByName("mystery.bin"))
	assert.Equal(t, "application/octet-stream", ContentTypeByName("no-extension"))
}

func TestExtensionForContentType_ShouldRoundTripKnownTypes(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionForContentType("image/jpeg"))
	assert.Equal(t, ".csv", ExtensionForContentType("text/csv; header=present"))
	assert.Equal(t, "", ExtensionForContentType("application/zip"))
}
