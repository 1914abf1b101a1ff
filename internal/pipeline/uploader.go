package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
)

// DefaultBatchSize is the documents-per-upsert default.
const DefaultBatchSize = 50

// BatchResult is the outcome of one bulk upsert call. When Transport is
// set the whole batch failed before any per-document accounting and Results
// is empty; otherwise Results aligns 1:1 with the submitted documents.
type BatchResult struct {
	Size      int
	Indexed   int
	Failed    int
	Transport bool
	Err       error
	Results   []engine.ImportResult
	Docs      []domain.Document
}

// Uploader groups documents into fixed-size batches and submits them with
// upsert semantics. It never fails a call for per-document errors; those
// are reported in the BatchResult and sampled when capture is on.
type Uploader struct {
	engine    engine.Engine
	batchSize int
	samples   *SampleStore
	logger    *slog.Logger
	dryRun    bool
}

// NewUploader creates an uploader. In dry-run mode nothing reaches the
// engine and every document counts as indexed.
func NewUploader(eng engine.Engine, batchSize int, samples *SampleStore, logger *slog.Logger, dryRun bool) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Uploader{
		engine:    eng,
		batchSize: batchSize,
		samples:   samples,
		logger:    logger,
		dryRun:    dryRun,
	}
}

// Batches splits a page's documents into submission-order batches.
func (u *Uploader) Batches(docs []domain.Document) [][]domain.Document {
	if len(docs) == 0 {
		return nil
	}
	batches := make([][]domain.Document, 0, (len(docs)+u.batchSize-1)/u.batchSize)
	for start := 0; start < len(docs); start += u.batchSize {
		end := start + u.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[start:end])
	}
	return batches
}

// Upload submits one batch. The returned result is always non-nil.
func (u *Uploader) Upload(ctx context.Context, batch []domain.Document) *BatchResult {
	result := &BatchResult{Size: len(batch), Docs: batch}
	if len(batch) == 0 {
		return result
	}

	batchesSubmitted.Inc()

	if u.dryRun {
		result.Indexed = len(batch)
		result.Results = make([]engine.ImportResult, len(batch))
		for i := range result.Results {
			result.Results[i].Success = true
		}
		return result
	}

	start := time.Now()
	results, err := u.engine.Import(ctx, batch)
	batchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// Transport-level failure: the whole batch counts as failed and
		// contributes a single sample and a single consecutive error.
		result.Transport = true
		result.Err = err
		result.Failed = len(batch)
		documentsFailed.WithLabelValues(domain.PhaseBatchProcessing).Add(float64(len(batch)))

		u.logger.ErrorContext(ctx, "batch upsert failed",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()),
		)
		u.samples.Capture(domain.PhaseBatchProcessing, nil, batch[0].ID, err.Error())
		return result
	}

	result.Results = results
	for i, res := range results {
		if res.Success {
			result.Indexed++
			documentsIndexed.Inc()
			continue
		}
		result.Failed++
		documentsFailed.WithLabelValues(domain.PhaseIndexing).Inc()

		doc := batch[i]
		u.logger.WarnContext(ctx, "document rejected by engine",
			slog.String("product_id", doc.ID),
			slog.String("error", res.Error),
			slog.Int("code", res.Code),
		)
		u.samples.Add(domain.ErrorSample{
			ProductID: doc.ID,
			Title:     doc.Title,
			Error:     res.Error,
			Phase:     domain.PhaseIndexing,
			Product: domain.SampleProduct{
				ID:    doc.ID,
				Title: boundedTitle(doc.Title),
				Brand: doc.Brand,
			},
		})
	}

	return result
}
