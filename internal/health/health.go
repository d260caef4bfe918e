package health

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthEndpoints struct {
	version    string
	filesystem Pinger
	object     Pinger
}

// NewEndpoints builds the health check. object may be nil when no object
// store is configured.
func NewEndpoints(version string, filesystem, object Pinger) *HealthEndpoints {
	return &HealthEndpoints{
		version:    version,
		filesystem: filesystem,
		object:     object,
	}
}

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Filesystem  bool   `json:"filesystem"`
	ObjectStore *bool  `json:"object_store,omitempty"`
}

// Health reports liveness plus per-backend reachability. A degraded
// backend does not change the status code: the service can still serve
// from the remaining substrate.
func (h *HealthEndpoints) Health(ctx *fasthttp.RequestCtx) {
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.filesystem != nil {
		response.Filesystem = h.filesystem.Ping(probeCtx) == nil
	}
	if h.object != nil {
		reachable := h.object.Ping(probeCtx) == nil
		response.ObjectStore = &reachable
	}
	if !response.Filesystem || (response.ObjectStore != nil && !*response.ObjectStore) {
		response.Status = "degraded"
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)

	responseJSON, err := json.Marshal(response)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetBody(responseJSON)
}
