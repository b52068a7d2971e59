package metrics

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "geotourist_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	statementAttempts *prometheus.CounterVec
	statementRetries  *prometheus.CounterVec
	statementLatency  *prometheus.HistogramVec

	batchTotal   *prometheus.CounterVec
	batchRows    *prometheus.CounterVec
	batchLatency *prometheus.HistogramVec

	linesRejected *prometheus.CounterVec

	featureQueries *prometheus.CounterVec
	featureLatency *prometheus.HistogramVec
)

// Init registers metrics and pool gauges. Safe to call more than once.
func Init(pools map[string]*pgxpool.Pool, logger zerolog.Logger) {
	registerOnce.Do(func() {
		statementAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_attempts_total",
				Help: "Transaction attempts by operation and outcome class",
			},
			[]string{"op", "class"},
		)
		statementRetries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_retries_total",
				Help: "Retries scheduled by operation and failure class",
			},
			[]string{"op", "class"},
		)
		statementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_latency_seconds",
				Help:    "End-to-end statement latency including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)

		batchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_batches_total",
				Help: "Flushed ingest batches by result",
			},
			[]string{"result"},
		)
		batchRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Ingested rows by result",
			},
			[]string{"result"},
		)
		batchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_batch_latency_seconds",
				Help:    "Batch flush latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		linesRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_lines_rejected_total",
				Help: "Malformed input lines by reason",
			},
			[]string{"reason"},
		)

		featureQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "feature_queries_total",
				Help: "Proximity queries by strategy and result",
			},
			[]string{"strategy", "result"},
		)
		featureLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "feature_query_latency_seconds",
				Help:    "Proximity query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		)

		prometheus.MustRegister(
			statementAttempts,
			statementRetries,
			statementLatency,
			batchTotal,
			batchRows,
			batchLatency,
			linesRejected,
			featureQueries,
			featureLatency,
		)

		for name, pool := range pools {
			if pool != nil {
				registerPoolMetrics(name, pool, logger)
			}
		}
	})
}

// IncStatementAttempt counts one transaction attempt.
func IncStatementAttempt(op, class string) {
	if statementAttempts != nil {
		statementAttempts.WithLabelValues(orUnknown(op), orUnknown(class)).Inc()
	}
}

// IncStatementRetry counts a scheduled retry.
func IncStatementRetry(op, class string) {
	if statementRetries != nil {
		statementRetries.WithLabelValues(orUnknown(op), orUnknown(class)).Inc()
	}
}

// ObserveStatement records total statement latency.
func ObserveStatement(mode, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementLatency != nil {
		statementLatency.WithLabelValues(orUnknown(mode), result).Observe(duration.Seconds())
	}
}

// ObserveBatch records a batch flush.
func ObserveBatch(result string, rows int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if batchTotal != nil {
		batchTotal.WithLabelValues(result).Inc()
	}
	if batchRows != nil && rows > 0 {
		batchRows.WithLabelValues(result).Add(float64(rows))
	}
	if batchLatency != nil {
		batchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncLineRejected counts a malformed input line.
func IncLineRejected(reason string) {
	if linesRejected != nil {
		linesRejected.WithLabelValues(orUnknown(reason)).Inc()
	}
}

// ObserveFeatureQuery records a proximity query.
func ObserveFeatureQuery(strategy, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if featureQueries != nil {
		featureQueries.WithLabelValues(orUnknown(strategy), result).Inc()
	}
	if featureLatency != nil {
		featureLatency.WithLabelValues(orUnknown(strategy)).Observe(duration.Seconds())
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
