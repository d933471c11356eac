package orm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queryDuration tracks statement latency per operation (find_all, count, aggregate, stat_*).
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adminquery_query_duration_seconds",
			Help:    "Duration of SQL statements issued by the query adapter",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// queryErrors counts statements that failed after all retries.
	queryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminquery_query_errors_total",
			Help: "Total number of failed SQL statements",
		},
		[]string{"operation"},
	)
)
