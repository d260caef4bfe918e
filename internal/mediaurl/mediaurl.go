// Package mediaurl normalizes the reference shapes media URLs have
// accumulated over time into the canonical proxy form.
package mediaurl

import (
	"net/url"
	"path"
	"strings"

	"github.com/townsquare/media_server/internal/category"
)

// ProxyPrefix is the path prefix of canonical media URLs served by the
// storage proxy.
const ProxyPrefix = "/api/storage-proxy/"

// Canonical builds the canonical proxy URL for a stored file. The subdir is
// always the category's primary one, so every reference to the same file
// converges on the same URL.
func Canonical(cat category.Category, filename string) string {
	d := category.Lookup(cat)
	return ProxyPrefix + d.Bucket + "/" + d.Subdir + "/" + filename
}

// Parse extracts the category and filename from any reference shape in
// circulation: canonical proxy URLs, /uploads paths, bare subdir paths,
// absolute URLs, and bare slugs. It reports false when the value carries no
// recognizable media reference; callers decide whether to pass such values
// through untouched.
func Parse(raw string, hint category.Category) (category.Category, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Path == "" {
			return "", "", false
		}
		raw = u.Path
	}

	if !strings.Contains(raw, "/") {
		return parseSlug(raw, hint)
	}

	segs := strings.Split(strings.Trim(raw, "/"), "/")
	last := segs[len(segs)-1]

	switch {
	case len(segs) >= 4 && segs[0] == "api" && segs[1] == "storage-proxy":
		d, ok := category.ByBucket(segs[2])
		if !ok {
			return "", "", false
		}
		return d.Category, last, true

	case segs[0] == "uploads":
		if len(segs) >= 3 {
			if d, ok := category.BySubdir(strings.ToLower(segs[1])); ok {
				return d.Category, last, true
			}
		}
		if c, ok := filenameCategory(last); ok {
			return c, last, true
		}
		if category.Known(hint) {
			return hint, last, true
		}
		return category.General, last, true

	case len(segs) >= 2:
		if d, ok := category.BySubdir(strings.ToLower(segs[0])); ok {
			return d.Category, last, true
		}
		if d, ok := category.ByBucket(segs[0]); ok {
			return d.Category, last, true
		}
		if category.Known(hint) {
			return hint, last, true
		}
		return "", "", false

	default:
		return parseSlug(last, hint)
	}
}

// ToCanonical rewrites a recognized reference to its canonical proxy URL.
// Unrecognized values come back unchanged and canonical input is a fixed
// point, so the rewrite is safe to apply on every read.
func ToCanonical(raw string, hint category.Category) string {
	cat, filename, ok := Parse(raw, hint)
	if !ok {
		return raw
	}
	return Canonical(cat, filename)
}

// ExtractFilename pulls the stored filename out of any reference shape.
func ExtractFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if base, section, ok := strings.Cut(raw, "#"); ok {
		if category.KnownExtension(path.Ext(section)) {
			return path.Base(section)
		}
		raw = base
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Path != "" {
			raw = u.Path
		}
	}
	raw = strings.Trim(raw, "/")
	if i := strings.LastIndexByte(raw, '/'); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}

// GuessCategory determines the most likely category of a reference. Unlike
// Parse it is total: anything unrecognizable falls back to General.
func GuessCategory(raw string) category.Category {
	if cat, _, ok := Parse(raw, ""); ok {
		return cat
	}

	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			raw = u.Path
		}
	}
	for _, seg := range strings.Split(strings.Trim(raw, "/"), "/") {
		if d, ok := category.BySubdir(strings.ToLower(seg)); ok {
			return d.Category
		}
		if d, ok := category.ByBucket(seg); ok {
			return d.Category
		}
	}
	return category.General
}

// parseSlug handles slash-free references: hash-joined "{section}#{file}"
// slugs, field-prefixed filenames like "eventImage-123-ab12.jpg", and bare
// filenames when the caller supplied a hint.
func parseSlug(slug string, hint category.Category) (category.Category, string, bool) {
	if slug == "" {
		return "", "", false
	}

	if base, section, ok := strings.Cut(slug, "#"); ok {
		if category.KnownExtension(path.Ext(section)) {
			if c, tokOK := categoryToken(base); tokOK {
				return c, section, true
			}
			slug = section
		} else {
			slug = base
		}
	}

	if c, ok := filenameCategory(slug); ok {
		return c, slug, true
	}
	if category.Known(hint) {
		return hint, slug, true
	}
	return "", "", false
}

// filenameCategory recovers the category from the field prefix uploads
// embed in generated filenames.
func filenameCategory(name string) (category.Category, bool) {
	if !category.KnownExtension(path.Ext(name)) {
		return "", false
	}
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return "", false
	}
	return category.FromFieldName(prefix)
}

// categoryToken matches a standalone token against every identifier a
// category answers to: its name, field aliases, subdirs, and bucket.
func categoryToken(tok string) (category.Category, bool) {
	if c := category.Category(strings.ToLower(tok)); category.Known(c) {
		return c, true
	}
	if c, ok := category.FromFieldName(tok); ok {
		return c, true
	}
	if d, ok := category.BySubdir(strings.ToLower(tok)); ok {
		return d.Category, true
	}
	if d, ok := category.ByBucket(tok); ok {
		return d.Category, true
	}
	return "", false
}
