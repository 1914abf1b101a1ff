// Command indexer runs one bulk indexing pass: it walks the upstream
// product API page by page, transforms products into search documents,
// bulk-upserts them into the engine and checkpoints progress so an
// interrupted run can resume where it left off.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/angelmartinezt1/cs-products-sub000/internal/config"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine/typesense"
	"github.com/angelmartinezt1/cs-products-sub000/internal/event"
	"github.com/angelmartinezt1/cs-products-sub000/internal/pipeline"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository/postgres"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository/postgres/migrations"
	"github.com/angelmartinezt1/cs-products-sub000/internal/upstream"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/database"
	pkgkafka "github.com/angelmartinezt1/cs-products-sub000/pkg/kafka"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/logger"
)

type flags struct {
	pages                int
	startPage            int
	batchSize            int
	checkpointInterval   int
	maxConsecutiveErrors int
	resume               bool
	debugErrors          bool
	stopOnErrors         bool
	dryRun               bool
	validateUpsert       bool
}

func parseFlags() flags {
	var f flags
	flag.IntVar(&f.pages, "pages", 0, "number of pages to process (0 = all)")
	flag.IntVar(&f.startPage, "start-page", 1, "page to start from (1-based)")
	flag.IntVar(&f.batchSize, "batch-size", pipeline.DefaultBatchSize, "documents per upsert batch")
	flag.IntVar(&f.checkpointInterval, "checkpoint-interval", 5, "save a checkpoint every N pages")
	flag.IntVar(&f.maxConsecutiveErrors, "max-consecutive-errors", 10, "stop after this many consecutive failures")
	flag.BoolVar(&f.resume, "resume", false, "resume from the last checkpoint")
	flag.BoolVar(&f.debugErrors, "debug-errors", false, "capture failing products to an error samples file")
	flag.BoolVar(&f.stopOnErrors, "stop-on-errors", false, "stop at the first batch containing failures")
	flag.BoolVar(&f.dryRun, "dry-run", false, "fetch and transform without writing to the engine")
	flag.BoolVar(&f.validateUpsert, "validate-upsert", false, "probe upsert semantics against the live collection before the run")
	flag.Parse()
	return f
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := pipeline.DefaultOptions(cfg.EngineCollection)
	opts.Pages = f.pages
	opts.StartPage = f.startPage
	opts.BatchSize = f.batchSize
	opts.PageSize = cfg.UpstreamPageSize
	opts.Resume = f.resume
	opts.CheckpointInterval = f.checkpointInterval
	opts.DebugErrors = f.debugErrors
	opts.StopOnErrors = f.stopOnErrors
	opts.MaxConsecutiveErrors = f.maxConsecutiveErrors
	opts.DryRun = f.dryRun
	opts.ValidateUpsert = f.validateUpsert
	opts.LogDir = cfg.LogDir

	// The run log carries the same NDJSON entries the console shows.
	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	runLogPath := filepath.Join(opts.LogDir, "run-"+opts.RunStamp+".log")
	runLog, err := os.Create(runLogPath)
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	defer runLog.Close()

	log := logger.NewTee("catalog-indexer", cfg.LogLevel, runLog)
	log.Info("starting indexing run",
		slog.String("environment", cfg.Environment),
		slog.String("collection", cfg.EngineCollection),
		slog.String("upstream", cfg.UpstreamURL),
		slog.Bool("resume", f.resume),
		slog.Bool("dry_run", f.dryRun),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcherCfg := upstream.DefaultConfig(cfg.UpstreamURL)
	fetcherCfg.PageSize = cfg.UpstreamPageSize
	fetcher := upstream.NewFetcher(fetcherCfg, log)

	eng := typesense.NewClient(typesense.Config{
		URL:        cfg.EngineURL,
		APIKey:     cfg.EngineAPIKey,
		Collection: cfg.EngineCollection,
		QueryBy:    strings.Split(cfg.EngineQueryBy, ","),
	}, log)

	samples := pipeline.NewSampleStore(opts.LogDir, opts.RunStamp, f.debugErrors, log)
	checkpoints := pipeline.NewCheckpointStore(opts.LogDir, cfg.EngineCollection, log)
	uploader := pipeline.NewUploader(eng, opts.BatchSize, samples, log, f.dryRun)

	deps := pipeline.Deps{
		Fetcher:     fetcher,
		Engine:      eng,
		Uploader:    uploader,
		Checkpoints: checkpoints,
		Samples:     samples,
		Logger:      log,
	}

	if cfg.MirrorEnabled && !f.dryRun {
		pool, err := buildMirrorPool(ctx, cfg, log)
		if err != nil {
			// The mirror is supporting infrastructure; the index run is the
			// point of this command.
			log.Warn("catalog mirror unavailable, continuing without it",
				slog.String("error", err.Error()),
			)
		} else {
			defer pool.Close()
			deps.Mirror = postgres.NewProductRepository(pool, log)
		}
	}

	if cfg.KafkaEnabled && !f.dryRun {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		publisher := event.NewPublisher(producer, cfg.EngineCollection, uuid.NewString(), log)
		defer publisher.Close()
		deps.Notifier = publisher
		log.Info("kafka progress events enabled", slog.Any("brokers", cfg.KafkaBrokers))
	}

	runner := pipeline.NewRunner(opts, deps)

	started := time.Now().UTC()
	if err := runner.Validate(ctx); err != nil {
		report := runner.ReportValidationFailure(started, err)
		fmt.Printf("run %s: startup validation failed (report: %s)\n",
			report.Status, report.ReportPath,
		)
		return fmt.Errorf("startup validation: %w", err)
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("indexing run: %w", err)
	}

	fmt.Printf("run %s: processed=%d indexed=%d failed=%d last_successful_page=%d (report: %s)\n",
		report.Status, report.Processed, report.Indexed, report.Failed,
		report.LastSuccessfulPage, report.ReportPath,
	)
	return nil
}

func buildMirrorPool(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pgCfg := database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}
	pool, err := database.NewPostgresPool(connectCtx, &pgCfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(connectCtx, pool, migrations.FS, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
