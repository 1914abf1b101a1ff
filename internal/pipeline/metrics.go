package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_documents_processed_total",
		Help: "Products pulled from the upstream and handed to the transformer",
	})

	documentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_documents_indexed_total",
		Help: "Documents the engine confirmed as upserted",
	})

	documentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_documents_failed_total",
		Help: "Documents dropped, by pipeline phase",
	}, []string{"phase"})

	batchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_batches_total",
		Help: "Bulk upsert calls submitted to the engine",
	})

	pagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_pages_total",
		Help: "Upstream pages processed, by outcome",
	}, []string{"status"})

	checkpointSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_checkpoint_saves_total",
		Help: "Checkpoint files written",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_batch_duration_seconds",
		Help:    "Wall time of one bulk upsert call",
		Buckets: prometheus.DefBuckets,
	})

	pageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_page_duration_seconds",
		Help:    "Wall time of one fetch-transform-upload page cycle",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Page outcome labels.
const (
	pageStatusOK      = "ok"
	pageStatusPartial = "partial"
	pageStatusFailed  = "failed"
)
