package proxy

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/townsquare/media_server/internal/mediaurl"
	"github.com/townsquare/media_server/internal/metrics"
	"github.com/townsquare/media_server/internal/resolve"
	"github.com/townsquare/media_server/internal/storage"
)

type ProxyEndpoints struct {
	resolver  *resolve.Resolver
	service   *ProxyService
	publicKey *rsa.PublicKey
}

func NewProxyEndpoints(resolver *resolve.Resolver, service *ProxyService, publicKey *rsa.PublicKey) *ProxyEndpoints {
	return &ProxyEndpoints{
		resolver:  resolver,
		service:   service,
		publicKey: publicKey,
	}
}

// Proxy streams the file behind any media reference. Hits are cacheable for
// a day since stored filenames are unique and never rewritten.
func (e *ProxyEndpoints) Proxy(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	hit, attempts, err := e.resolver.Resolve(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug().Str("path", path).Int("attempts", len(attempts)).Msg("[PROXY] Media not found")
			ctx.Error("Media not found", fasthttp.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("path", path).Msg("[PROXY] Resolution failed")
		ctx.Error("Storage unavailable", fasthttp.StatusServiceUnavailable)
		return
	}

	ctx.SetContentType(hit.ContentType)
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "public, max-age=86400")
	// fasthttp closes the stream once the response is written
	ctx.SetBodyStream(meteredReader{hit.Body}, -1)
}

type presignRequest struct {
	URL        string `json:"url"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Presign issues a time-limited direct download URL for a reference.
func (e *ProxyEndpoints) Presign(ctx *fasthttp.RequestCtx) {
	var request presignRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil {
		ctx.Error("Invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if strings.TrimSpace(request.URL) == "" {
		ctx.Error("url is required", fasthttp.StatusBadRequest)
		return
	}

	result, err := e.service.Presign(ctx, request.URL, request.TTLSeconds)
	if err != nil {
		switch {
		case errors.Is(err, ErrTTLTooLong):
			ctx.Error("Requested TTL exceeds ceiling", fasthttp.StatusBadRequest)
		case errors.Is(err, storage.ErrNotFound):
			ctx.Error("Media not found", fasthttp.StatusNotFound)
		case errors.Is(err, storage.ErrUnavailable):
			ctx.Error("Storage unavailable", fasthttp.StatusServiceUnavailable)
		default:
			log.Error().Err(err).Str("url", request.URL).Msg("[PROXY] Presign failed")
			ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
		}
		return
	}

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(result); err != nil {
		log.Error().Err(err).Msg("[PROXY] Failed to encode response")
	}
}

// Download serves a file granted by a signed token, for copies that live
// outside the object store.
func (e *ProxyEndpoints) Download(ctx *fasthttp.RequestCtx) {
	token := string(ctx.QueryArgs().Peek("token"))
	if token == "" {
		ctx.Error("Missing token", fasthttp.StatusBadRequest)
		return
	}

	cat, filename, err := VerifyDownloadToken(e.publicKey, token)
	if err != nil {
		log.Warn().Err(err).Msg("[PROXY] Rejected download token")
		ctx.Error("Invalid or expired token", fasthttp.StatusForbidden)
		return
	}

	hit, _, err := e.resolver.Resolve(ctx, mediaurl.Canonical(cat, filename))
	if err != nil {
		ctx.Error("Media not found", fasthttp.StatusNotFound)
		return
	}

	ctx.SetContentType(hit.ContentType)
	ctx.Response.Header.Set(fasthttp.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", filename))
	ctx.SetBodyStream(meteredReader{hit.Body}, -1)
}

// meteredReader counts streamed bytes without buffering them.
type meteredReader struct {
	io.ReadCloser
}

func (r meteredReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n > 0 {
		metrics.ProxyBytesTotal.Add(float64(n))
	}
	return n, err
}
