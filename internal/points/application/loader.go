package application

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geotourist/internal/observability/metrics"
	"geotourist/internal/points/domain"
	"geotourist/internal/points/ingest"
)

const maxLineBytes = 16 << 20

// Loader streams lines through the normalizer into the batch writer.
type Loader struct {
	normalizer *ingest.Normalizer
	writer     *BatchWriter
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLoader constructs a Loader.
func NewLoader(normalizer *ingest.Normalizer, writer *BatchWriter, logger zerolog.Logger) (*Loader, error) {
	if normalizer == nil {
		return nil, errors.New("loader: nil normalizer")
	}
	if writer == nil {
		return nil, errors.New("loader: nil batch writer")
	}
	return &Loader{normalizer: normalizer, writer: writer, logger: logger, now: time.Now}, nil
}

// Run reads r to the end, then closes the writer. Malformed lines are counted
// and dropped. A non-nil error with a populated summary means some batches or
// the input itself failed; committed batches stay durable.
func (l *Loader) Run(ctx context.Context, source string, r io.Reader) (domain.IngestSummary, error) {
	summary := domain.IngestSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: l.now(),
		Rejected:  map[string]int{},
	}
	logger := l.logger.With().Str("run_id", summary.RunID).Str("source", source).Logger()
	logger.Info().Msg("ingest started")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var runErr error
	for scanner.Scan() {
		summary.Lines++
		rec, err := l.normalizer.Parse(scanner.Text())
		if err != nil {
			var rejectErr *ingest.RejectError
			switch {
			case errors.Is(err, ingest.ErrSkipLine):
				summary.Sentinels++
			case errors.As(err, &rejectErr):
				summary.Rejected[rejectErr.Reason]++
				metrics.IncLineRejected(rejectErr.Reason)
				logger.Debug().Int("line", summary.Lines).Str("reason", rejectErr.Reason).Msg(rejectErr.Detail)
			}
			continue
		}
		summary.Parsed++
		if err := l.writer.Add(ctx, rec); err != nil && ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}
	if runErr == nil {
		runErr = scanner.Err()
	}

	closeErr := l.writer.Close(ctx)
	stats := l.writer.Stats()
	summary.RowsWritten = stats.RowsWritten
	summary.RowsSkipped = stats.RowsSkipped
	summary.RowsFailed = stats.FailedRows()
	summary.Batches = l.writer.Reports()
	summary.FinishedAt = l.now()

	logger.Info().
		Int("lines", summary.Lines).
		Int("parsed", summary.Parsed).
		Int("rejected", summary.RejectedTotal()).
		Int("rows_written", summary.RowsWritten).
		Int("rows_skipped", summary.RowsSkipped).
		Int("rows_failed", summary.RowsFailed).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("ingest finished")

	return summary, errors.Join(runErr, closeErr)
}
