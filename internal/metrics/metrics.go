// Package metrics holds the Prometheus collectors of the refresh pipeline,
// the portfolio engine and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wallet_portfolio"

var (
	// Refresh
	RefreshItemsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "items_written_total",
		Help:      "Total payload items upserted, by entity",
	}, []string{"entity"})

	RefreshItemsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "items_failed_total",
		Help:      "Total payload items skipped or rejected, by entity",
	}, []string{"entity"})

	RefreshWallets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "wallets_total",
		Help:      "Total wallet refreshes, by chain family and outcome",
	}, []string{"family", "outcome"})

	RefreshRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "refresh",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full refresh run over every linked wallet",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Portfolio
	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "portfolio",
		Name:      "recompute_total",
		Help:      "Total rollup recomputes, by outcome",
	}, []string{"outcome"})

	RecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "portfolio",
		Name:      "recompute_duration_seconds",
		Help:      "Rollup recompute duration (single transaction)",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	ReportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "portfolio",
		Name:      "report_cache_lookups_total",
		Help:      "Report cache lookups, by result (hit, miss, error)",
	}, []string{"result"})

	HistoryWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "portfolio",
		Name:      "history_write_errors_total",
		Help:      "Snapshots that could not be appended to the history store",
	})

	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests, by route and status code",
	}, []string{"route", "method", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// Postgres pool
	DBPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_total_conns",
		Help:      "Current number of PostgreSQL connections in the pool",
	})

	DBPoolAcquiredConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_acquired_conns",
		Help:      "Current number of acquired PostgreSQL connections",
	})

	DBPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_idle_conns",
		Help:      "Current number of idle PostgreSQL connections",
	})

	DBPoolAcquireWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_acquire_wait_seconds",
		Help:      "Cumulative time spent waiting for a PostgreSQL connection",
	})
)
