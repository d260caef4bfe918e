package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/townsquare/media_server/internal/category"
)

// Filesystem root labels used in Location.Store values. Labels stay stable
// across deployments even though the physical paths differ.
const (
	RootDev  = "dev"
	RootProd = "prod"
)

// Filesystem stores media under two physical roots. Writes land in the dev
// root and are copied best-effort to the prod root; reads address one root
// at a time through explicit candidate locations.
type Filesystem struct {
	devRoot  string
	prodRoot string
}

func NewFilesystem(config *FilesystemConfig) (*Filesystem, error) {
	if config.DevRoot == "" {
		return nil, errors.New("filesystem dev root is required")
	}
	prodRoot := config.ProdRoot
	if prodRoot == "" {
		// single-root deployments collapse prod onto dev
		prodRoot = config.DevRoot
	}

	for _, root := range []string{config.DevRoot, prodRoot} {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
		}
	}

	return &Filesystem{
		devRoot:  config.DevRoot,
		prodRoot: prodRoot,
	}, nil
}

func (s *Filesystem) Kind() Kind {
	return KindFilesystem
}

// Roots returns the root labels in search order. Deployments with a single
// physical root report only RootDev so candidate lists stay duplicate-free.
func (s *Filesystem) Roots() []string {
	if s.prodRoot == s.devRoot {
		return []string{RootDev}
	}
	return []string{RootDev, RootProd}
}

func (s *Filesystem) rootPath(store string) (string, error) {
	switch store {
	case RootDev:
		return s.devRoot, nil
	case RootProd:
		return s.prodRoot, nil
	}
	return "", fmt.Errorf("unknown filesystem root %q", store)
}

func (s *Filesystem) Put(ctx context.Context, key MediaKey, data io.Reader, size int64, contentType string) (Location, error) {
	rel := filepath.FromSlash(key.Path())
	devPath := filepath.Join(s.devRoot, rel)

	if err := writeFile(devPath, data); err != nil {
		return Location{}, fmt.Errorf("write %s: %w: %w", devPath, ErrUnavailable, err)
	}

	if s.prodRoot != s.devRoot {
		prodPath := filepath.Join(s.prodRoot, rel)
		if err := copyFile(devPath, prodPath); err != nil {
			log.Warn().Err(err).Str("file", key.Path()).Msg("[STORAGE] Prod root copy failed")
		}
	}

	return key.FilesystemLocation(RootDev), nil
}

func (s *Filesystem) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	fullPath, err := s.locate(loc)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w: %w", loc, ErrUnavailable, err)
	}
	return file, nil
}

func (s *Filesystem) Exists(ctx context.Context, loc Location) (bool, error) {
	fullPath, err := s.locate(loc)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w: %w", loc, ErrUnavailable, err)
	}
	return true, nil
}

func (s *Filesystem) Delete(ctx context.Context, loc Location) error {
	fullPath, err := s.locate(loc)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w: %w", loc, ErrUnavailable, err)
	}
	return nil
}

func (s *Filesystem) ListByPrefix(ctx context.Context, cat category.Category, prefix string) ([]string, error) {
	subdir := category.Lookup(cat).Subdir
	seen := make(map[string]bool)
	var names []string

	roots := []string{s.devRoot}
	if s.prodRoot != s.devRoot {
		roots = append(roots, s.prodRoot)
	}
	for _, root := range roots {
		entries, err := os.ReadDir(filepath.Join(root, subdir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("list %s/%s: %w: %w", root, subdir, ErrUnavailable, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || seen[name] || !strings.HasPrefix(name, prefix) {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Ping reports whether the dev root is reachable; used by the health
// endpoint.
func (s *Filesystem) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.devRoot); err != nil {
		return fmt.Errorf("stat %s: %w", s.devRoot, err)
	}
	return nil
}

// locate resolves a candidate location to an absolute path, rejecting
// traversal outside the root.
func (s *Filesystem) locate(loc Location) (string, error) {
	if loc.Kind != KindFilesystem {
		return "", fmt.Errorf("filesystem backend cannot address %s locations", loc.Kind)
	}
	root, err := s.rootPath(loc.Store)
	if err != nil {
		return "", err
	}

	rel := filepath.FromSlash(loc.Path)
	fullPath := filepath.Join(root, rel)
	if !strings.HasPrefix(fullPath, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes storage root", loc.Path)
	}
	return fullPath, nil
}

func writeFile(fullPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, in)
}
