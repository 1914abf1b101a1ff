// Package pipeline implements the resumable bulk indexing run: fetch pages
// from the upstream catalog, transform products into documents, bulk-upsert
// them into the search engine, and checkpoint progress between pages.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
	"github.com/angelmartinezt1/cs-products-sub000/internal/transform"
)

// Options is the run configuration surface.
type Options struct {
	Collection string
	// Pages caps how many pages this run processes; 0 means unbounded.
	Pages     int
	StartPage int
	BatchSize int
	PageSize  int
	// Resume loads the checkpoint and overrides StartPage.
	Resume               bool
	CheckpointInterval   int
	DebugErrors          bool
	StopOnErrors         bool
	MaxConsecutiveErrors int
	DryRun               bool
	ValidateUpsert       bool

	BatchPause   time.Duration
	PagePause    time.Duration
	FailurePause time.Duration

	LogDir   string
	RunStamp string
}

// DefaultOptions returns the documented defaults.
func DefaultOptions(collection string) Options {
	return Options{
		Collection:           collection,
		StartPage:            1,
		BatchSize:            DefaultBatchSize,
		PageSize:             100,
		CheckpointInterval:   5,
		MaxConsecutiveErrors: 10,
		BatchPause:           200 * time.Millisecond,
		PagePause:            100 * time.Millisecond,
		FailurePause:         2 * time.Second,
		LogDir:               "logs",
		RunStamp:             time.Now().UTC().Format("20060102-150405"),
	}
}

// PageFetcher retrieves one upstream page; page numbers are 1-based.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*domain.ProductPage, error)
}

// Mirror receives successfully transformed documents for the relational
// catalog mirror. Mirror failures never fail a page.
type Mirror interface {
	UpsertProducts(ctx context.Context, docs []domain.Document) error
}

// Notifier publishes run progress events. Both methods are best effort.
type Notifier interface {
	PageIndexed(ctx context.Context, page int, ids []string) error
	RunCompleted(ctx context.Context, report *domain.Report) error
}

// Runner drives the page loop. It is the single writer of the counters and
// the only component that advances the checkpoint.
type Runner struct {
	opts        Options
	fetcher     PageFetcher
	engine      engine.Engine
	uploader    *Uploader
	checkpoints *CheckpointStore
	samples     *SampleStore
	mirror      Mirror
	notifier    Notifier
	logger      *slog.Logger

	counters domain.Counters
}

// Deps wires the runner's collaborators. Mirror and Notifier are optional.
type Deps struct {
	Fetcher     PageFetcher
	Engine      engine.Engine
	Uploader    *Uploader
	Checkpoints *CheckpointStore
	Samples     *SampleStore
	Mirror      Mirror
	Notifier    Notifier
	Logger      *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(opts Options, deps Deps) *Runner {
	if opts.StartPage <= 0 {
		opts.StartPage = 1
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = 10
	}
	return &Runner{
		opts:        opts,
		fetcher:     deps.Fetcher,
		engine:      deps.Engine,
		uploader:    deps.Uploader,
		checkpoints: deps.Checkpoints,
		samples:     deps.Samples,
		mirror:      deps.Mirror,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
	}
}

// Validate performs the startup checks against the engine: health, schema
// primary key, and optionally the upsert probe. Skipped on dry runs.
func (r *Runner) Validate(ctx context.Context) error {
	if r.opts.DryRun {
		return nil
	}

	if err := r.engine.Health(ctx); err != nil {
		return fmt.Errorf("engine health check: %w", err)
	}

	col, err := r.engine.Collection(ctx)
	if err != nil {
		return fmt.Errorf("read collection schema: %w", err)
	}
	// Divergence between the schema's key field and the field the uploader
	// populates silently duplicates documents, so this is fatal.
	if col.PrimaryKeyField() != "id" {
		return fmt.Errorf("collection %s does not declare a string primary-key field named id", col.Name)
	}

	r.logger.InfoContext(ctx, "collection schema validated",
		slog.String("collection", col.Name),
		slog.Int64("num_documents", col.NumDocuments),
		slog.String("default_sorting_field", col.DefaultSortingField),
	)

	if r.opts.ValidateUpsert {
		if err := r.validateUpsert(ctx); err != nil {
			return fmt.Errorf("upsert probe: %w", err)
		}
	}
	return nil
}

// validateUpsert inserts a probe document twice with the same id and
// asserts the document count did not grow on the second insert.
func (r *Runner) validateUpsert(ctx context.Context) error {
	probe := domain.Document{
		ID:       "upsert-probe-" + uuid.NewString(),
		Title:    "upsert probe",
		TitleSEO: domain.DefaultTitleSEO,
	}
	defer func() {
		if err := r.engine.Delete(context.WithoutCancel(ctx), probe.ID); err != nil {
			r.logger.Warn("probe cleanup failed", slog.String("error", err.Error()))
		}
	}()

	countAfter := func() (int64, error) {
		col, err := r.engine.Collection(ctx)
		if err != nil {
			return 0, err
		}
		return col.NumDocuments, nil
	}

	if err := r.importProbe(ctx, probe); err != nil {
		return err
	}
	first, err := countAfter()
	if err != nil {
		return err
	}

	if err := r.importProbe(ctx, probe); err != nil {
		return err
	}
	second, err := countAfter()
	if err != nil {
		return err
	}

	if first != second {
		return fmt.Errorf("document count grew from %d to %d on re-upsert of the same id", first, second)
	}
	return nil
}

func (r *Runner) importProbe(ctx context.Context, probe domain.Document) error {
	results, err := r.engine.Import(ctx, []domain.Document{probe})
	if err != nil {
		return err
	}
	if len(results) != 1 || !results[0].Success {
		return fmt.Errorf("probe document rejected: %+v", results)
	}
	return nil
}

// ReportValidationFailure writes the run report for a run that never
// started because startup validation failed. No checkpoint is written, so
// a later resume is unaffected by the aborted run.
func (r *Runner) ReportValidationFailure(started time.Time, cause error) *domain.Report {
	report := r.buildReport(domain.RunStatusInterrupted, started)
	report.Error = cause.Error()
	if err := r.writeReport(report); err != nil {
		r.logger.Warn("report write failed", slog.String("error", err.Error()))
	}
	return report
}

// Run executes the page loop until a stop condition fires. Interruption via
// context cancellation is a clean exit: the in-flight batch finishes, a
// final checkpoint is saved, and the report carries status INTERRUPTED.
func (r *Runner) Run(ctx context.Context) (*domain.Report, error) {
	started := time.Now().UTC()
	status := domain.RunStatusCompleted

	startPage := r.opts.StartPage
	if r.opts.Resume {
		cp, err := r.checkpoints.Load()
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		if cp != nil {
			startPage = cp.LastSuccessfulPage + 1
			r.counters = cp.Counters
			r.counters.ConsecutiveErrors = 0
			r.logger.InfoContext(ctx, "resuming from checkpoint",
				slog.Int("last_successful_page", cp.LastSuccessfulPage),
				slog.Int("start_page", startPage),
				slog.Time("saved_at", cp.SavedAt),
			)
		} else {
			r.logger.InfoContext(ctx, "resume requested but no checkpoint found, starting fresh")
		}
	}

	page := startPage
	pagesDone := 0

pageLoop:
	for {
		if ctx.Err() != nil {
			status = domain.RunStatusInterrupted
			break
		}
		if r.opts.Pages > 0 && pagesDone >= r.opts.Pages {
			r.logger.InfoContext(ctx, "page limit reached", slog.Int("pages", r.opts.Pages))
			break
		}

		pageStart := time.Now()
		pg, err := r.fetcher.FetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				status = domain.RunStatusInterrupted
				break
			}
			// Permanent page failure: record it and advance rather than
			// loop forever on a poison page.
			r.counters.ConsecutiveErrors++
			pagesProcessed.WithLabelValues(pageStatusFailed).Inc()
			r.logger.ErrorContext(ctx, "page fetch failed, skipping",
				slog.Int("page", page),
				slog.Int("consecutive_errors", r.counters.ConsecutiveErrors),
				slog.String("error", err.Error()),
			)
			if r.counters.ConsecutiveErrors >= r.opts.MaxConsecutiveErrors {
				r.logger.ErrorContext(ctx, "consecutive error threshold reached, stopping")
				break
			}
			if !r.sleep(ctx, r.opts.FailurePause) {
				status = domain.RunStatusInterrupted
				break
			}
			pagesDone++
			page++
			continue
		}

		if len(pg.Products) == 0 {
			r.logger.InfoContext(ctx, "upstream returned no products, run complete", slog.Int("page", page))
			break
		}

		docs, pageFailures := r.transformPage(ctx, page, pg.Products)

		var indexedIDs []string
		for i, batch := range r.uploader.Batches(docs) {
			if ctx.Err() != nil {
				status = domain.RunStatusInterrupted
				break pageLoop
			}
			if i > 0 && !r.sleep(ctx, r.opts.BatchPause) {
				status = domain.RunStatusInterrupted
				break pageLoop
			}

			res := r.uploader.Upload(ctx, batch)
			r.counters.Batches++
			r.counters.Indexed += res.Indexed
			r.counters.Failed += res.Failed
			pageFailures += res.Failed
			r.applyConsecutive(res)
			for j, out := range res.Results {
				if out.Success {
					indexedIDs = append(indexedIDs, batch[j].ID)
				}
			}

			if r.opts.StopOnErrors && res.Failed > 0 {
				r.logger.WarnContext(ctx, "stop-on-errors: batch contained failures, stopping",
					slog.Int("page", page),
					slog.Int("failed", res.Failed),
				)
				r.finishPage(ctx, page, pageFailures, pageStart, indexedIDs, docs)
				pagesDone++
				break pageLoop
			}
			if r.counters.ConsecutiveErrors >= r.opts.MaxConsecutiveErrors {
				r.logger.ErrorContext(ctx, "consecutive error threshold reached, stopping",
					slog.Int("consecutive_errors", r.counters.ConsecutiveErrors),
				)
				r.finishPage(ctx, page, pageFailures, pageStart, indexedIDs, docs)
				pagesDone++
				break pageLoop
			}
		}

		r.finishPage(ctx, page, pageFailures, pageStart, indexedIDs, docs)
		pagesDone++

		// Transform rejections raise the streak without ever entering the
		// batch loop, so the threshold is re-checked between pages too.
		if r.counters.ConsecutiveErrors >= r.opts.MaxConsecutiveErrors {
			r.logger.ErrorContext(ctx, "consecutive error threshold reached, stopping",
				slog.Int("consecutive_errors", r.counters.ConsecutiveErrors),
			)
			break
		}

		if r.opts.CheckpointInterval > 0 && pagesDone%r.opts.CheckpointInterval == 0 {
			r.saveCheckpoint(ctx)
		}

		if !pg.HasMorePages(page) {
			r.logger.InfoContext(ctx, "no more pages reported by upstream", slog.Int("page", page))
			break
		}
		if !r.sleep(ctx, r.opts.PagePause) {
			status = domain.RunStatusInterrupted
			break
		}
		page++
	}

	r.saveCheckpoint(ctx)
	if err := r.samples.Flush(); err != nil {
		r.logger.Warn("final sample flush failed", slog.String("error", err.Error()))
	}

	report := r.buildReport(status, started)
	if err := r.writeReport(report); err != nil {
		r.logger.Warn("report write failed", slog.String("error", err.Error()))
	}
	if r.notifier != nil {
		if err := r.notifier.RunCompleted(context.WithoutCancel(ctx), report); err != nil {
			r.logger.Warn("run completion event failed", slog.String("error", err.Error()))
		}
	}

	r.logger.Info("run finished",
		slog.String("status", report.Status),
		slog.Int("processed", report.Processed),
		slog.Int("indexed", report.Indexed),
		slog.Int("failed", report.Failed),
		slog.Int("last_successful_page", report.LastSuccessfulPage),
		slog.Float64("docs_per_second", report.DocsPerSecond),
	)
	return report, nil
}

// transformPage maps raw products to documents, accounting failures.
func (r *Runner) transformPage(ctx context.Context, page int, products []domain.RawProduct) ([]domain.Document, int) {
	docs := make([]domain.Document, 0, len(products))
	failures := 0

	for _, p := range products {
		r.counters.Processed++
		documentsProcessed.Inc()

		doc, err := transform.Product(p)
		if err != nil {
			failures++
			r.counters.Failed++
			r.counters.ConsecutiveErrors++
			documentsFailed.WithLabelValues(domain.PhaseTransformation).Inc()
			r.logger.WarnContext(ctx, "transform rejected product",
				slog.Int("page", page),
				slog.String("product_id", rawProductID(p)),
				slog.String("error", err.Error()),
			)
			r.samples.Capture(domain.PhaseTransformation, p, rawProductID(p), err.Error())
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, failures
}

// finishPage settles per-page bookkeeping: checkpoint advancement, the
// relational mirror, progress events and metrics. The checkpoint only
// advances when the page produced zero document-level failures, so a
// resume re-attempts partially written pages.
func (r *Runner) finishPage(ctx context.Context, page, pageFailures int, pageStart time.Time, indexedIDs []string, docs []domain.Document) {
	if pageFailures == 0 {
		r.counters.LastSuccessfulPage = page
		pagesProcessed.WithLabelValues(pageStatusOK).Inc()
	} else {
		pagesProcessed.WithLabelValues(pageStatusPartial).Inc()
	}
	pageDuration.Observe(time.Since(pageStart).Seconds())

	if r.mirror != nil && len(docs) > 0 {
		if err := r.mirror.UpsertProducts(ctx, docs); err != nil {
			r.logger.WarnContext(ctx, "catalog mirror update failed",
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.notifier != nil && len(indexedIDs) > 0 {
		if err := r.notifier.PageIndexed(ctx, page, indexedIDs); err != nil {
			r.logger.WarnContext(ctx, "page indexed event failed",
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "page processed",
		slog.Int("page", page),
		slog.Int("documents", len(docs)),
		slog.Int("failures", pageFailures),
		slog.Int("indexed_total", r.counters.Indexed),
		slog.Int("last_successful_page", r.counters.LastSuccessfulPage),
	)
}

// applyConsecutive folds a batch outcome into the consecutive-error
// counter: a transport failure counts once, per-document outcomes count in
// order with successes resetting the counter.
func (r *Runner) applyConsecutive(res *BatchResult) {
	if res.Transport {
		r.counters.ConsecutiveErrors++
		return
	}
	for _, out := range res.Results {
		if out.Success {
			r.counters.ConsecutiveErrors = 0
		} else {
			r.counters.ConsecutiveErrors++
		}
	}
}

func (r *Runner) saveCheckpoint(ctx context.Context) {
	cp := &domain.Checkpoint{
		LastSuccessfulPage: r.counters.LastSuccessfulPage,
		Counters:           r.counters,
		Config: domain.ConfigSnapshot{
			Collection:         r.opts.Collection,
			BatchSize:          r.opts.BatchSize,
			PageSize:           r.opts.PageSize,
			CheckpointInterval: r.opts.CheckpointInterval,
			StopOnErrors:       r.opts.StopOnErrors,
		},
	}
	if err := r.checkpoints.Save(cp); err != nil {
		r.logger.ErrorContext(ctx, "checkpoint save failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) buildReport(status string, started time.Time) *domain.Report {
	finished := time.Now().UTC()
	duration := finished.Sub(started).Seconds()

	throughput := 0.0
	if duration > 0 {
		throughput = math.Round(float64(r.counters.Indexed)/duration*100) / 100
	}

	return &domain.Report{
		Status:             status,
		Processed:          r.counters.Processed,
		Indexed:            r.counters.Indexed,
		Failed:             r.counters.Failed,
		Batches:            r.counters.Batches,
		LastSuccessfulPage: r.counters.LastSuccessfulPage,
		StartedAt:          started,
		FinishedAt:         finished,
		DurationSeconds:    math.Round(duration*100) / 100,
		DocsPerSecond:      throughput,
		LogPath:            filepath.Join(r.opts.LogDir, "run-"+r.opts.RunStamp+".log"),
		CheckpointPath:     r.checkpoints.Path(),
		SamplesPath:        r.samples.Path(),
		ReportPath:         filepath.Join(r.opts.LogDir, "report-"+r.opts.RunStamp+".json"),
	}
}

func (r *Runner) writeReport(report *domain.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(r.opts.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.WriteFile(report.ReportPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// sleep pauses cooperatively; false means the context was cancelled.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// rawProductID extracts the best-effort identifier from a raw product for
// logging and samples.
func rawProductID(p domain.RawProduct) string {
	for _, key := range []string{"id", "external_id"} {
		switch v := p[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
