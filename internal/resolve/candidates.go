package resolve

import (
	"path"

	"github.com/townsquare/media_server/internal/category"
	"github.com/townsquare/media_server/internal/storage"
)

// Candidates enumerates every location a file might live, in search order:
// for each name variant the primary subdirectory comes before the legacy
// alternates, and within a subdirectory the object store is probed before
// the filesystem roots. Extension variants are tried only for extensionless
// names outside the general category. The list is bounded and
// duplicate-free.
func Candidates(key storage.MediaKey, objectEnabled bool, roots []string) []storage.Location {
	desc := category.Lookup(key.Category)

	names := []string{key.Filename}
	if path.Ext(key.Filename) == "" && desc.Category != category.General {
		for _, ext := range category.ImageExtensions {
			names = append(names, key.Filename+ext)
		}
	}

	seen := make(map[storage.Location]bool)
	var candidates []storage.Location
	add := func(loc storage.Location) {
		if !seen[loc] {
			seen[loc] = true
			candidates = append(candidates, loc)
		}
	}

	for _, name := range names {
		for _, subdir := range desc.Subdirs() {
			rel := subdir + "/" + name
			if objectEnabled {
				add(storage.Location{Kind: storage.KindObject, Store: desc.Bucket, Path: rel})
			}
			for _, root := range roots {
				add(storage.Location{Kind: storage.KindFilesystem, Store: root, Path: rel})
			}
		}
	}
	return candidates
}
