// Command osmload streams '<'-delimited point rows from files or stdin into the osm table.
package main

import (
	"compress/gzip"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"geotourist/internal/config"
	"geotourist/internal/datastore"
	"geotourist/internal/datastore/retry"
	"geotourist/internal/observability/logging"
	"geotourist/internal/observability/metrics"
	"geotourist/internal/points/application"
	"geotourist/internal/points/domain"
	pointsrepo "geotourist/internal/points/infrastructure/postgres"
	"geotourist/internal/points/ingest"
	"geotourist/internal/points/query"
	"geotourist/internal/report"
)

type options struct {
	schema     string
	batchSize  int
	maxRetries int
	setup      bool
	resetSites bool
	reportPath string
	pushURL    string
	inputs     []string
}

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	opts := parseOptions(cfg)
	if opts.batchSize > pointsrepo.MaxBatchRows {
		logger.Fatal().Int("max", pointsrepo.MaxBatchRows).Msg("batch-size too large")
	}
	schema, err := ingest.ParseSchema(opts.schema)
	if err != nil {
		logger.Fatal().Err(err).Msg("schema error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, schema, logger); err != nil {
		logger.Error().Err(err).Msg("load failed")
		os.Exit(1)
	}
}

func parseOptions(cfg config.Config) options {
	var opts options
	flag.StringVar(&opts.schema, "schema", "ingest", "input layout: ingest (10 fields) or raw (8 fields)")
	flag.IntVar(&opts.batchSize, "batch-size", cfg.BatchSize, "rows per INSERT")
	flag.IntVar(&opts.maxRetries, "max-retries", cfg.MaxRetries, "attempts per transaction")
	flag.BoolVar(&opts.setup, "setup", true, "create tables and seed tourist locations before loading")
	flag.BoolVar(&opts.resetSites, "reset-sites", false, "recreate tourist_locations before seeding")
	flag.StringVar(&opts.reportPath, "report", "", "write a run report to this .pdf or .xlsx path")
	flag.StringVar(&opts.pushURL, "pushgateway", cfg.PushgatewayURL, "push run metrics to this Pushgateway when set")
	flag.Parse()
	opts.inputs = flag.Args()
	return opts
}

func run(ctx context.Context, cfg config.Config, opts options, schema ingest.Schema, logger zerolog.Logger) error {
	pools, err := datastore.OpenPools(ctx, datastore.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		ReadSize:        1,
		WriteSize:       cfg.WritePoolSize,
		ConnectTimeout:  cfg.ConnectTimeout,
		ApplicationName: "geotourist-osmload",
	})
	if err != nil {
		return err
	}
	defer pools.Close()

	metrics.Init(map[string]*pgxpool.Pool{"read": pools.Read, "write": pools.Write}, logger)

	exec, err := datastore.NewPoolExecutor(pools,
		datastore.WithPolicy(retry.NewPolicy(opts.maxRetries, nil)),
		datastore.WithStatementTimeout(cfg.StatementTimeout),
		datastore.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if opts.setup {
		schemaManager, err := pointsrepo.NewSchemaManager(exec, logger)
		if err != nil {
			return err
		}
		if err := schemaManager.Ensure(ctx, opts.resetSites); err != nil {
			return fmt.Errorf("setup schema: %w", err)
		}
	}

	builder, err := query.NewBuilder(query.StrategyBucket)
	if err != nil {
		return err
	}
	repo, err := pointsrepo.NewPointRepository(exec, builder)
	if err != nil {
		return err
	}
	writer, err := application.NewBatchWriter(repo,
		application.WithBatchSize(opts.batchSize),
		application.WithBatchLogger(logger),
	)
	if err != nil {
		return err
	}
	loader, err := application.NewLoader(ingest.NewNormalizer(schema), writer, logger)
	if err != nil {
		return err
	}

	input, source, closeInputs, err := openInputs(opts.inputs)
	if err != nil {
		return err
	}
	defer closeInputs()

	summary, runErr := loader.Run(ctx, source, input)
	if opts.reportPath != "" {
		if err := report.WriteFile(opts.reportPath, summary); err != nil {
			logger.Error().Err(err).Str("path", opts.reportPath).Msg("report write failed")
		} else {
			logger.Info().Str("path", opts.reportPath).Msg("report written")
		}
	}
	logSummary(logger, summary)
	if opts.pushURL != "" {
		if err := metrics.Push(context.WithoutCancel(ctx), opts.pushURL, "geotourist_osmload", map[string]string{"schema": opts.schema}); err != nil {
			logger.Error().Err(err).Str("pushgateway", opts.pushURL).Msg("metrics push failed")
		}
	}
	return runErr
}

// openInputs concatenates the named files (gzip when suffixed .gz), or stdin when none are given.
func openInputs(paths []string) (io.Reader, string, func(), error) {
	if len(paths) == 0 || (len(paths) == 1 && paths[0] == "-") {
		return os.Stdin, "stdin", func() {}, nil
	}

	var (
		readers []io.Reader
		closers []io.Closer
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, "", nil, err
		}
		closers = append(closers, f)
		if !strings.HasSuffix(path, ".gz") {
			readers = append(readers, f)
			continue
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			closeAll()
			return nil, "", nil, fmt.Errorf("%s: %w", path, err)
		}
		closers = append(closers, gz)
		readers = append(readers, gz)
	}
	return io.MultiReader(readers...), strings.Join(paths, ","), closeAll, nil
}

func logSummary(logger zerolog.Logger, summary domain.IngestSummary) {
	event := logger.Info().
		Str("run_id", summary.RunID).
		Int("lines", summary.Lines).
		Int("batches", len(summary.Batches)).
		Int("rows_written", summary.RowsWritten).
		Int("rows_skipped", summary.RowsSkipped).
		Int("rows_failed", summary.RowsFailed)
	for reason, n := range summary.Rejected {
		event = event.Int("rejected_"+reason, n)
	}
	event.Msg("load summary")
}
