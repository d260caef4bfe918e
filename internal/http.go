package internal

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/townsquare/media_server/internal/diag"
	"github.com/townsquare/media_server/internal/health"
	"github.com/townsquare/media_server/internal/mediaurl"
	"github.com/townsquare/media_server/internal/middleware"
	"github.com/townsquare/media_server/internal/proxy"
	"github.com/townsquare/media_server/internal/upload"
)

func NewRequestHandler(config *Config, uploadEndpoints *upload.UploadEndpoints, proxyEndpoints *proxy.ProxyEndpoints, diagEndpoints *diag.DiagEndpoints, healthEndpoints *health.HealthEndpoints) fasthttp.RequestHandler {
	corsMiddleware := middleware.NewCORSMiddleware(config.AllowedOrigins)
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		method := string(ctx.Method())

		switch {
		case strings.HasPrefix(path, mediaurl.ProxyPrefix):
			if method == "GET" || method == "HEAD" {
				proxyEndpoints.Proxy(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == proxy.DownloadPath:
			if method == "GET" {
				proxyEndpoints.Download(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/storage/upload":
			if method == "POST" {
				uploadEndpoints.Upload(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/storage/presign":
			if method == "POST" {
				proxyEndpoints.Presign(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/storage/diagnostics":
			if method == "GET" {
				diagEndpoints.Diagnostics(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/storage/reconcile":
			if method == "POST" {
				diagEndpoints.Reconcile(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/storage/assets":
			if method == "DELETE" {
				diagEndpoints.Purge(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/health":
			healthEndpoints.Health(ctx)

		case path == "/metrics":
			metricsHandler(ctx)

		default:
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		}
	}

	return corsMiddleware.Handle(handler)
}
