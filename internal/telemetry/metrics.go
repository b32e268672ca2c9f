// Package telemetry provides application-level observability for castline.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// available on the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<CASTLINE_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Trust engine transition counters, by action and outcome
//   - Audit ledger write counters
//   - Job listing ranking latency
//   - Restriction expiry sweep counters
//   - Rate limiter rejections
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/admin/accounts/:id/restrict)
// rather than the raw request URL so account ids never become label values.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Trust engine metrics.
//
// TrustTransitionsTotal is a CounterVec with labels {action, outcome}. action is the
// engine operation (confirm_payment, apply_restriction, ...); outcome is "committed",
// "noop" or the lower-case error kind (forbidden, conflicting_state, ...).
//
// Example PromQL queries:
//   - Rejected admin actions:  sum by (action) (rate(trust_transitions_total{outcome!~"committed|noop"}[1h]))
//
// AuditLedgerWritesTotal is a CounterVec with label {outcome} ("committed" or "failed").
// Any increase of the failed series deserves an alert: the mutation it accompanied was
// rolled back or, if the failure was at commit, its outcome is unknown.
var (
	TrustTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_transitions_total",
			Help: "Total number of trust engine operations, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	AuditLedgerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_ledger_writes_total",
			Help: "Total number of audit ledger writes, by outcome.",
		},
		[]string{"outcome"},
	)
)

// JobListingRankDuration observes the time spent ranking one public job listing
// response, excluding the database read.
var JobListingRankDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "job_listing_rank_duration_seconds",
		Help:    "Duration of ranking the open job listing by director trust.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
)

// RateLimitRejectedTotal counts requests refused with 429, by limiter backend
// ("memory" or "redis").
var RateLimitRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// RestrictionSweepLiftedTotal counts restrictions lifted by the expiry sweep job.
var RestrictionSweepLiftedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "restriction_sweep_lifted_total",
		Help: "Total number of expired restrictions lifted by the background sweep.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the connection pool. It is sampled every 30 seconds by StartDBStatsCollector
// rather than per-request.
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <CASTLINE_DATABASE_MAX_CONNECTIONS> * 100
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples connection pool statistics every interval until ctx
// is cancelled or the database becomes unreachable.
//
// Call this once, immediately after db.Connect() succeeds:
//
//	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)
func StartDBStatsCollector(ctx context.Context, db *sqlx.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
