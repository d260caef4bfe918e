package proxy

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/storage"
)

// DownloadPath serves token-granted downloads for files that live outside
// the object store.
const DownloadPath = "/api/storage-download"

// ErrTTLTooLong rejects presign requests above the configured ceiling.
var ErrTTLTooLong = errors.New("requested ttl exceeds ceiling")

type Config struct {
	PresignDefaultTTLSec int `mapstructure:"presign_default_ttl_sec"`
	PresignTTLCeilingSec int `mapstructure:"presign_ttl_ceiling_sec"`
}

// Presigner issues direct object store URLs.
type Presigner interface {
	PresignGet(ctx context.Context, loc storage.Location, ttl time.Duration) (string, error)
}

// Locator finds where a reference currently lives without opening it.
type Locator interface {
	Locate(ctx context.Context, raw string) (storage.MediaKey, storage.Location, bool)
}

// PresignResult is a time-limited direct download grant.
type PresignResult struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
	Mode      string `json:"mode"`
}

// ProxyService issues presigned access to stored files: native object
// store URLs when the file lives there, signed download tokens otherwise.
type ProxyService struct {
	locator    Locator
	presigner  Presigner
	privateKey *rsa.PrivateKey
	defaultTTL time.Duration
	ceilingTTL time.Duration
}

func NewProxyService(locator Locator, presigner Presigner, privateKey *rsa.PrivateKey, config *Config) *ProxyService {
	defaultTTL := time.Duration(config.PresignDefaultTTLSec) * time.Second
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	ceilingTTL := time.Duration(config.PresignTTLCeilingSec) * time.Second
	if ceilingTTL <= 0 {
		ceilingTTL = time.Hour
	}
	if defaultTTL > ceilingTTL {
		defaultTTL = ceilingTTL
	}

	return &ProxyService{
		locator:    locator,
		presigner:  presigner,
		privateKey: privateKey,
		defaultTTL: defaultTTL,
		ceilingTTL: ceilingTTL,
	}
}

// Presign issues a short-lived direct URL for a reference. Requested TTLs
// above the configured ceiling are rejected outright; the response carries
// the actual expiry.
func (s *ProxyService) Presign(ctx context.Context, raw string, ttlSec int) (*PresignResult, error) {
	ttl := time.Duration(ttlSec) * time.Second
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.ceilingTTL {
		return nil, fmt.Errorf("%d seconds: %w", ttlSec, ErrTTLTooLong)
	}

	key, loc, found := s.locator.Locate(ctx, raw)
	if !found {
		return nil, fmt.Errorf("%q: %w", raw, storage.ErrNotFound)
	}

	if loc.Kind == storage.KindObject && s.presigner != nil {
		signed, err := s.presigner.PresignGet(ctx, loc, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to presign %s: %w", loc, err)
		}
		metrics.PresignsTotal.WithLabelValues("object").Inc()
		return &PresignResult{URL: signed, ExpiresAt: timeNowFunc().Add(ttl).Unix(), Mode: "object"}, nil
	}

	token, expiresAt, err := MintDownloadToken(s.privateKey, key.Category, key.Filename, ttl)
	if err != nil {
		return nil, err
	}
	metrics.PresignsTotal.WithLabelValues("token").Inc()
	return &PresignResult{
		URL:       DownloadPath + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
		Mode:      "token",
	}, nil
}
