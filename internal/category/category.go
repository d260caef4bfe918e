package category

import (
	"path"
	"strings"
)

// Category is the logical classification of an uploaded asset. It drives
// bucket selection on the object store and subdirectory selection on the
// filesystem roots.
type Category string

const (
	Calendar   Category = "calendar"
	Forum      Category = "forum"
	Vendor     Category = "vendor"
	Community  Category = "community"
	RealEstate Category = "real_estate"
	Avatar     Category = "avatar"
	Banner     Category = "banner"
	Content    Category = "content"
	General    Category = "general"
)

// Descriptor holds the routing and validation rules for one category. The
// registry is fixed at startup; only physical bucket names may be remapped
// by deployment configuration.
type Descriptor struct {
	Category    Category
	Bucket      string   // upper-case bucket token used in canonical URLs
	Subdir      string   // primary filesystem subdirectory, also the object key prefix
	AltSubdirs  []string // legacy subdirectories still searched during resolution
	MaxFileSize int64
	MirrorToFS  bool // older clients of these categories still read root-relative paths
	Thumbnails  bool

	contentTypes map[string]bool
}

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var mediaContentTypes = mergeContentTypes(imageContentTypes, map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
	"video/mov":  true,
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/wav":  true,
	"audio/ogg":  true,
})

var generalContentTypes = mergeContentTypes(mediaContentTypes, map[string]bool{
	"application/pdf": true,
	"text/csv":        true,
})

var registry = []*Descriptor{
	{Category: Calendar, Bucket: "CALENDAR", Subdir: "calendar-media", AltSubdirs: []string{"calendar", "events"}, MaxFileSize: 20 << 20, MirrorToFS: true, contentTypes: mediaContentTypes},
	{Category: Forum, Bucket: "FORUM", Subdir: "forum-media", AltSubdirs: []string{"content-media", "general"}, MaxFileSize: 50 << 20, contentTypes: mediaContentTypes},
	{Category: Vendor, Bucket: "VENDORS", Subdir: "vendor-media", AltSubdirs: []string{"vendors"}, MaxFileSize: 20 << 20, MirrorToFS: true, contentTypes: mediaContentTypes},
	{Category: Community, Bucket: "COMMUNITY", Subdir: "community-media", AltSubdirs: []string{"community"}, MaxFileSize: 50 << 20, contentTypes: mediaContentTypes},
	{Category: RealEstate, Bucket: "REALESTATE", Subdir: "real-estate-media", AltSubdirs: []string{"realestate-media", "listings"}, MaxFileSize: 10 << 20, contentTypes: imageContentTypes},
	{Category: Avatar, Bucket: "AVATARS", Subdir: "avatars", AltSubdirs: []string{"avatar", "profile-images"}, MaxFileSize: 5 << 20, Thumbnails: true, contentTypes: imageContentTypes},
	{Category: Banner, Bucket: "BANNERS", Subdir: "banner-slides", AltSubdirs: []string{"banners", "content-media"}, MaxFileSize: 10 << 20, Thumbnails: true, contentTypes: imageContentTypes},
	{Category: Content, Bucket: "CONTENT", Subdir: "content-media", AltSubdirs: []string{"forum-media", "general"}, MaxFileSize: 50 << 20, contentTypes: mediaContentTypes},
	{Category: General, Bucket: "UPLOADS", Subdir: "general", AltSubdirs: []string{"media", "files"}, MaxFileSize: 100 << 20, contentTypes: generalContentTypes},
}

var (
	byName   = make(map[Category]*Descriptor, len(registry))
	byBucket = make(map[string]*Descriptor, len(registry))
	bySubdir = make(map[string]*Descriptor, len(registry))
)

func init() {
	for _, d := range registry {
		byName[d.Category] = d
		byBucket[d.Bucket] = d
		bySubdir[d.Subdir] = d
	}
}

func mergeContentTypes(sets ...map[string]bool) map[string]bool {
	merged := make(map[string]bool)
	for _, set := range sets {
		for contentType := range set {
			merged[contentType] = true
		}
	}
	return merged
}

// Lookup returns the descriptor for c, falling back to the general
// descriptor for unknown values. It never returns nil.
func Lookup(c Category) *Descriptor {
	if d, ok := byName[c]; ok {
		return d
	}
	return byName[General]
}

// Known reports whether c is a registered category name.
func Known(c Category) bool {
	_, ok := byName[c]
	return ok
}

// All returns every descriptor in fixed registry order.
func All() []*Descriptor {
	return registry
}

// ByBucket matches a bucket token case-insensitively.
func ByBucket(token string) (*Descriptor, bool) {
	d, ok := byBucket[strings.ToUpper(strings.TrimSpace(token))]
	return d, ok
}

// BySubdir matches primary subdirectories first, then legacy alternates in
// registry order.
func BySubdir(dir string) (*Descriptor, bool) {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if d, ok := bySubdir[dir]; ok {
		return d, true
	}
	for _, d := range registry {
		for _, alt := range d.AltSubdirs {
			if alt == dir {
				return d, true
			}
		}
	}
	return nil, false
}

// Allows reports whether the declared content type is accepted for this
// category.
func (d *Descriptor) Allows(contentType string) bool {
	return d.contentTypes[normalizeContentType(contentType)]
}

// Subdirs returns the primary subdirectory followed by the legacy
// alternates, in resolution search order.
func (d *Descriptor) Subdirs() []string {
	dirs := make([]string, 0, 1+len(d.AltSubdirs))
	dirs = append(dirs, d.Subdir)
	dirs = append(dirs, d.AltSubdirs...)
	return dirs
}

func normalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	// strip parameters such as "; charset=utf-8"
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType
}

// ImageExtensions lists the extensions tried, in order, when resolving an
// extensionless name in an image-bearing category.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var extensionContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/mov",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
}

// ContentTypeByName maps a filename extension to its media content type,
// defaulting to application/octet-stream.
func ContentTypeByName(filename string) string {
	if contentType, ok := extensionContentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// ExtensionForContentType is the inverse of ContentTypeByName, used when an
// upload arrives without a usable original filename.
func ExtensionForContentType(contentType string) string {
	switch normalizeContentType(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/mov":
		return ".mov"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "application/pdf":
		return ".pdf"
	case "text/csv":
		return ".csv"
	default:
		return ""
	}
}

// KnownExtension reports whether ext (with leading dot) belongs to a media
// type this layer stores.
func KnownExtension(ext string) bool {
	_, ok := extensionContentTypes[strings.ToLower(ext)]
	return ok
}
