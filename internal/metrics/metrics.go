// Package metrics exposes the Prometheus collectors for the media layer.
// Collectors are package-level so any component can record without wiring.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_uploads_total",
		Help: "Completed uploads by category and primary backend.",
	}, []string{"category", "backend"})

	UploadRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_rejections_total",
		Help: "Uploads rejected before any storage write.",
	}, []string{"reason"})

	UploadFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_upload_fallbacks_total",
		Help: "Uploads that fell back to the filesystem after an object store failure.",
	})

	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_resolutions_total",
		Help: "Resolution requests by outcome.",
	}, []string{"outcome"})

	ResolutionCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_resolution_candidates",
		Help:    "Number of candidate locations probed per resolution.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	MirrorEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_mirror_enqueued_total",
		Help: "Mirror tasks accepted onto the queue.",
	})

	MirrorDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_mirror_dropped_total",
		Help: "Mirror tasks dropped because the queue was full.",
	})

	MirrorCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_mirror_completed_total",
		Help: "Mirror tasks copied successfully.",
	})

	MirrorFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_mirror_failures_total",
		Help: "Mirror copies that failed and were journaled for retry.",
	})

	ReconcileRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_reconcile_runs_total",
		Help: "Reconciler sweeps over the journal.",
	})

	PresignsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_presigns_total",
		Help: "Presigned download URLs issued, by mode.",
	}, []string{"mode"})

	ProxyBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_proxy_bytes_total",
		Help: "Bytes streamed through the storage proxy.",
	})
)

func init() {
	prometheus.MustRegister(
		UploadsTotal,
		UploadRejectionsTotal,
		UploadFallbacksTotal,
		ResolutionsTotal,
		ResolutionCandidates,
		MirrorEnqueuedTotal,
		MirrorDroppedTotal,
		MirrorCompletedTotal,
		MirrorFailuresTotal,
		ReconcileRunsTotal,
		PresignsTotal,
		ProxyBytesTotal,
	)
}
