package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"geotourist/internal/datastore"
	"geotourist/internal/observability/metrics"
	"geotourist/internal/points/domain"
)

const (
	// DefaultBatchSize is the number of rows per INSERT.
	DefaultBatchSize = 2048
	// DefaultMaxRetainedBatches bounds how many failed batches are held for the retry on Close.
	DefaultMaxRetainedBatches = 16
)

// ErrBatchesFailed is returned by Close when some batches could not be written.
var ErrBatchesFailed = errors.New("batch writer: batches failed")

// BatchInserter writes one batch in a single transaction.
type BatchInserter interface {
	InsertBatch(ctx context.Context, records []domain.PointRecord) (datastore.Outcome, error)
}

// BatchStats summarizes writer activity.
type BatchStats struct {
	Batches       int
	RowsWritten   int
	RowsSkipped   int
	FailedBatches int
	RetainedRows  int
	DroppedRows   int
}

// FailedRows counts rows not written: retained ones plus those over the retention limit.
func (s BatchStats) FailedRows() int {
	return s.RetainedRows + s.DroppedRows
}

type retainedBatch struct {
	index int
	rows  []domain.PointRecord
}

// BatchWriter buffers rows and flushes them in fixed-size batches, in input order.
// Failed batches are kept, up to a limit, and re-attempted once by Close.
// Not safe for concurrent use.
type BatchWriter struct {
	inserter    BatchInserter
	size        int
	maxRetained int
	buf         []domain.PointRecord
	next        int
	retained    []retainedBatch
	reports     []domain.BatchReport
	stats       BatchStats
	onFlush     func(domain.BatchReport)
	logger      zerolog.Logger
	now         func() time.Time
}

// BatchOption configures a BatchWriter.
type BatchOption func(*BatchWriter)

// WithBatchSize sets rows per batch.
func WithBatchSize(size int) BatchOption {
	return func(w *BatchWriter) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithMaxRetainedBatches caps the failed batches held in memory. Failures past
// the cap are dropped and counted in DroppedRows.
func WithMaxRetainedBatches(n int) BatchOption {
	return func(w *BatchWriter) {
		if n >= 0 {
			w.maxRetained = n
		}
	}
}

// WithOnFlush registers a hook called after every flush attempt.
func WithOnFlush(fn func(domain.BatchReport)) BatchOption {
	return func(w *BatchWriter) {
		w.onFlush = fn
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(logger zerolog.Logger) BatchOption {
	return func(w *BatchWriter) {
		w.logger = logger
	}
}

// NewBatchWriter constructs a BatchWriter.
func NewBatchWriter(inserter BatchInserter, opts ...BatchOption) (*BatchWriter, error) {
	if inserter == nil {
		return nil, errors.New("batch writer: nil inserter")
	}
	w := &BatchWriter{
		inserter:    inserter,
		size:        DefaultBatchSize,
		maxRetained: DefaultMaxRetainedBatches,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.buf = make([]domain.PointRecord, 0, w.size)
	return w, nil
}

// Add buffers rec and flushes when the buffer is full. The returned error
// describes a failed flush; the rows are retained and writing may continue.
func (w *BatchWriter) Add(ctx context.Context, rec domain.PointRecord) error {
	w.buf = append(w.buf, rec)
	if len(w.buf) < w.size {
		return nil
	}
	return w.Flush(ctx)
}

// Flush writes any buffered rows as one batch.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	rows := w.buf
	w.buf = make([]domain.PointRecord, 0, w.size)
	w.next++
	w.stats.Batches++

	report := w.write(ctx, w.next, rows)
	if report.Err != nil {
		w.stats.FailedBatches++
		if len(w.retained) < w.maxRetained {
			w.retained = append(w.retained, retainedBatch{index: report.Index, rows: rows})
			w.stats.RetainedRows += len(rows)
		} else {
			w.stats.DroppedRows += len(rows)
			w.logger.Warn().Int("batch", report.Index).Int("rows", len(rows)).Int("limit", w.maxRetained).Msg("retention limit reached, batch dropped")
		}
		return fmt.Errorf("batch writer: batch %d: %w", report.Index, report.Err)
	}
	return nil
}

// Close flushes the partial batch and makes one more attempt for each retained batch.
func (w *BatchWriter) Close(ctx context.Context) error {
	flushErr := w.Flush(ctx)
	if len(w.retained) == 0 && w.stats.DroppedRows == 0 {
		return flushErr
	}

	var remaining []retainedBatch
	var errs []error
	for _, batch := range w.retained {
		if ctx.Err() != nil {
			remaining = append(remaining, batch)
			continue
		}
		w.logger.Info().Int("batch", batch.index).Int("rows", len(batch.rows)).Msg("retrying retained batch")
		report := w.write(ctx, batch.index, batch.rows)
		if report.Err != nil {
			remaining = append(remaining, batch)
			errs = append(errs, fmt.Errorf("batch %d: %w", batch.index, report.Err))
			continue
		}
		w.stats.FailedBatches--
		w.stats.RetainedRows -= len(batch.rows)
	}
	w.retained = remaining
	if len(remaining) == 0 && w.stats.DroppedRows == 0 {
		return nil
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if w.stats.DroppedRows > 0 {
		errs = append(errs, fmt.Errorf("%d rows dropped past the retention limit", w.stats.DroppedRows))
	}
	return fmt.Errorf("%w: %d batches, %d rows: %w", ErrBatchesFailed, w.stats.FailedBatches, w.stats.FailedRows(), errors.Join(errs...))
}

func (w *BatchWriter) write(ctx context.Context, index int, rows []domain.PointRecord) domain.BatchReport {
	w.logger.Info().Int("batch", index).Int("rows", len(rows)).Msg("running insert for batch")
	start := w.now()
	outcome, err := w.inserter.InsertBatch(ctx, rows)
	report := domain.BatchReport{
		Index:   index,
		Rows:    len(rows),
		Elapsed: w.now().Sub(start),
		Skipped: outcome.Skipped,
		Err:     err,
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
		w.logger.Error().Err(err).Int("batch", index).Int("rows", len(rows)).Msg("batch insert failed")
	case outcome.Skipped:
		result = metrics.ResultSkipped
		w.stats.RowsSkipped += len(rows)
		w.logger.Warn().Int("batch", index).Int("rows", len(rows)).Msg("batch skipped on unique conflict")
	default:
		w.stats.RowsWritten += len(rows)
		w.logger.Info().Int("batch", index).Int("rows", len(rows)).Dur("elapsed", report.Elapsed).Msg("batch committed")
	}
	metrics.ObserveBatch(result, len(rows), report.Elapsed)

	w.reports = append(w.reports, report)
	if w.onFlush != nil {
		w.onFlush(report)
	}
	return report
}

// Stats returns writer counters.
func (w *BatchWriter) Stats() BatchStats {
	return w.stats
}

// Reports returns every flush attempt in order, including retries.
func (w *BatchWriter) Reports() []domain.BatchReport {
	out := make([]domain.BatchReport, len(w.reports))
	copy(out, w.reports)
	return out
}

// Buffered returns the number of rows waiting for the next flush.
func (w *BatchWriter) Buffered() int {
	return len(w.buf)
}
