package diag

import (
	"errors"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/townsquare/media_server/internal/mirror"
	"github.com/townsquare/media_server/internal/storage"
)

type DiagEndpoints struct {
	service    *DiagService
	reconciler *mirror.Reconciler
}

func NewEndpoints(service *DiagService, reconciler *mirror.Reconciler) *DiagEndpoints {
	return &DiagEndpoints{
		service:    service,
		reconciler: reconciler,
	}
}

// Diagnostics returns the cross-backend inventory report.
func (e *DiagEndpoints) Diagnostics(ctx *fasthttp.RequestCtx) {
	report := e.service.Report(ctx)

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(report); err != nil {
		log.Error().Err(err).Msg("[DIAG] Failed to encode report")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
	}
}

// Reconcile runs one reconciliation sweep synchronously and reports what
// it accomplished.
func (e *DiagEndpoints) Reconcile(ctx *fasthttp.RequestCtx) {
	summary := e.reconciler.RunNow()

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(summary); err != nil {
		log.Error().Err(err).Msg("[DIAG] Failed to encode reconcile summary")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
	}
}

// Purge removes every stored copy of the referenced file.
func (e *DiagEndpoints) Purge(ctx *fasthttp.RequestCtx) {
	raw := string(ctx.QueryArgs().Peek("url"))
	if raw == "" {
		ctx.Error("Missing url parameter", fasthttp.StatusBadRequest)
		return
	}

	result, err := e.service.Purge(ctx, raw)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ctx.Error("Not a media reference", fasthttp.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("url", raw).Msg("[DIAG] Purge failed")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(result); err != nil {
		log.Error().Err(err).Msg("[DIAG] Failed to encode purge result")
		ctx.Error("Internal server error", fasthttp.StatusInternalServerError)
	}
}
