package storage

import (
	"context"
	"io"

	"github.com/townsquare/media_server/internal/category"
)

// Kind identifies a storage substrate.
type Kind string

const (
	KindFilesystem Kind = "filesystem"
	KindObject     Kind = "object"
)

// MediaKey is the logical identity of a stored asset. Keys are generated
// once at upload time and never reused; the same key may have bytes in
// several locations at once.
type MediaKey struct {
	Category category.Category
	Filename string
}

func (k MediaKey) String() string {
	return string(k.Category) + "/" + k.Filename
}

// Path returns the canonical "{subdir}/{filename}" path of the key inside
// any store: the object key within the category bucket, or the relative
// path under a filesystem root.
func (k MediaKey) Path() string {
	return category.Lookup(k.Category).Subdir + "/" + k.Filename
}

// ObjectLocation is the canonical object-store location for the key.
func (k MediaKey) ObjectLocation() Location {
	return Location{Kind: KindObject, Store: category.Lookup(k.Category).Bucket, Path: k.Path()}
}

// FilesystemLocation is the location of the key under the given root label.
func (k MediaKey) FilesystemLocation(root string) Location {
	return Location{Kind: KindFilesystem, Store: root, Path: k.Path()}
}

// Location records one concrete place where the bytes of a key were found
// or written: the substrate, the bucket token or filesystem root label, and
// the path within that store. A key may have zero, one, or several
// locations; any location that resolves is equally valid to read from.
type Location struct {
	Kind  Kind   `json:"kind"`
	Store string `json:"store"`
	Path  string `json:"path"`
}

func (l Location) String() string {
	return string(l.Kind) + ":" + l.Store + "/" + l.Path
}

// Backend is the uniform contract both substrates implement. Backends make
// single attempts only; retries, fallbacks, and mirror policy belong to the
// pipelines.
type Backend interface {
	Kind() Kind

	// Put writes the full content of data under the key's canonical path and
	// returns the primary location written.
	Put(ctx context.Context, key MediaKey, data io.Reader, size int64, contentType string) (Location, error)

	// Open streams the bytes at one explicit candidate location.
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)

	// Exists probes one explicit candidate location without opening it.
	Exists(ctx context.Context, loc Location) (bool, error)

	// Delete removes the bytes at a location. Deleting a location that does
	// not exist is not an error.
	Delete(ctx context.Context, loc Location) error

	// ListByPrefix enumerates the filenames stored for a category. Used by
	// diagnostics and reconciliation, never on the read path.
	ListByPrefix(ctx context.Context, cat category.Category, prefix string) ([]string, error)
}

// Config groups the backend settings read from files/config.yaml.
type Config struct {
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Object     ObjectConfig     `mapstructure:"object"`
}

type FilesystemConfig struct {
	DevRoot    string `mapstructure:"dev_root"`
	ProdRoot   string `mapstructure:"prod_root"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type ObjectConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Buckets remaps canonical bucket tokens to deployment-specific bucket
	// names, e.g. AVATARS -> town-avatars. Unmapped tokens are lowercased.
	Buckets    map[string]string `mapstructure:"buckets"`
	TimeoutSec int               `mapstructure:"timeout_sec"`
}
