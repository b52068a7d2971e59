package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func registerPoolMetrics(name string, pool *pgxpool.Pool, logger zerolog.Logger) {
	labels := prometheus.Labels{"pool": name}

	register(logger, prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        metricPrefix + "pool_acquired_conns",
			Help:        "Connections currently checked out of the pool",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.Stat().AcquiredConns()) },
	))
	register(logger, prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        metricPrefix + "pool_idle_conns",
			Help:        "Idle connections in the pool",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.Stat().IdleConns()) },
	))
	register(logger, prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        metricPrefix + "pool_max_conns",
			Help:        "Configured pool size",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.Stat().MaxConns()) },
	))
}

func register(logger zerolog.Logger, collector prometheus.Collector) {
	if err := prometheus.Register(collector); err != nil {
		logger.Warn().Err(err).Msg("metrics register failed")
	}
}
