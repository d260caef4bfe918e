package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/townsquare/media_server/internal/category"
)

// ObjectStorage is the bucket-per-category backend. Bucket tokens from the
// registry are mapped to physical bucket names at construction; the tokens
// themselves never change, so canonical URLs stay stable across
// deployments.
type ObjectStorage struct {
	client  *minio.Client
	buckets map[string]string
}

func NewObjectStorage(config *ObjectConfig) (*ObjectStorage, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	s := &ObjectStorage{
		client:  client,
		buckets: make(map[string]string),
	}
	for token, name := range config.Buckets {
		s.buckets[strings.ToUpper(token)] = name
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, d := range category.All() {
		bucket := s.bucket(d.Bucket)
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}

	return s, nil
}

func (s *ObjectStorage) Kind() Kind {
	return KindObject
}

// bucket maps a canonical bucket token to the physical bucket name. Tokens
// are upper-case in URLs but object stores require lowercase names, so the
// default mapping simply lowercases.
func (s *ObjectStorage) bucket(token string) string {
	if name, ok := s.buckets[token]; ok {
		return name
	}
	return strings.ToLower(token)
}

func (s *ObjectStorage) Put(ctx context.Context, key MediaKey, data io.Reader, size int64, contentType string) (Location, error) {
	loc := key.ObjectLocation()
	_, err := s.client.PutObject(ctx, s.bucket(loc.Store), loc.Path, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Location{}, fmt.Errorf("put %s: %w: %w", loc, ErrUnavailable, err)
	}
	return loc, nil
}

func (s *ObjectStorage) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if loc.Kind != KindObject {
		return nil, fmt.Errorf("object backend cannot address %s locations", loc.Kind)
	}

	obj, err := s.client.GetObject(ctx, s.bucket(loc.Store), loc.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", loc, ErrUnavailable, err)
	}

	// GetObject is lazy; Stat forces the request so missing keys surface
	// here instead of on the first read
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMissingObject(err) {
			return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w: %w", loc, ErrUnavailable, err)
	}

	return obj, nil
}

func (s *ObjectStorage) Exists(ctx context.Context, loc Location) (bool, error) {
	if loc.Kind != KindObject {
		return false, fmt.Errorf("object backend cannot address %s locations", loc.Kind)
	}

	_, err := s.client.StatObject(ctx, s.bucket(loc.Store), loc.Path, minio.StatObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w: %w", loc, ErrUnavailable, err)
	}
	return true, nil
}

func (s *ObjectStorage) Delete(ctx context.Context, loc Location) error {
	if loc.Kind != KindObject {
		return fmt.Errorf("object backend cannot address %s locations", loc.Kind)
	}

	err := s.client.RemoveObject(ctx, s.bucket(loc.Store), loc.Path, minio.RemoveObjectOptions{})
	if err != nil && !isMissingObject(err) {
		return fmt.Errorf("remove %s: %w: %w", loc, ErrUnavailable, err)
	}
	return nil
}

func (s *ObjectStorage) ListByPrefix(ctx context.Context, cat category.Category, prefix string) ([]string, error) {
	d := category.Lookup(cat)
	keyPrefix := d.Subdir + "/"

	var names []string
	objects := s.client.ListObjects(ctx, s.bucket(d.Bucket), minio.ListObjectsOptions{
		Prefix:    keyPrefix + prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w: %w", d.Bucket, ErrUnavailable, obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, keyPrefix))
	}
	return names, nil
}

// PresignGet issues a time-limited direct URL for a stored object. The TTL
// ceiling is enforced by the caller, not here.
func (s *ObjectStorage) PresignGet(ctx context.Context, loc Location, ttl time.Duration) (string, error) {
	if loc.Kind != KindObject {
		return "", fmt.Errorf("object backend cannot address %s locations", loc.Kind)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket(loc.Store), loc.Path, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w: %w", loc, ErrUnavailable, err)
	}
	return u.String(), nil
}

// Ping probes the store with a single bucket existence check; used by the
// health endpoint.
func (s *ObjectStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket(category.Lookup(category.General).Bucket))
	return err
}

// isMissingObject distinguishes "no such bucket/key" from transient
// failures so resolution knows whether to keep searching.
func isMissingObject(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
