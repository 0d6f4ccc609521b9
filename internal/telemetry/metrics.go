// Package telemetry provides logging setup and Prometheus metrics for the portal.
//
// All metrics are registered against the default registry and served by the
// side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<PORTAL_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics are labelled with c.FullPath() (the route template such as
// /api/v1/projects/:projectId), never the raw URL, so that user-supplied path
// segments cannot blow up label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/client-portal/portal/internal/safego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
//
// Example PromQL queries:
//   - Error rate (%): sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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

// Outcome label values for AuthDecisionsTotal.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// AuthDecisionsTotal counts gate decisions. gate is one of identity, role,
// organization, organization_role, project; outcome is allowed, denied or error.
//
// Example PromQL queries:
//   - Denials by gate: sum by (gate) (rate(auth_decisions_total{outcome="denied"}[5m]))
var AuthDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_decisions_total",
		Help: "Total number of authorization gate decisions, by gate and outcome.",
	},
	[]string{"gate", "outcome"},
)

// Directory metrics, recorded by directory.SQLDirectory around every lookup.
//
// Example PromQL queries:
//   - p95 lookup latency: histogram_quantile(0.95, sum by (operation, le) (rate(directory_lookup_duration_seconds_bucket[5m])))
var (
	DirectoryLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_lookup_duration_seconds",
			Help:    "Latency of user directory lookups, by operation.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DirectoryLookupErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_lookup_errors_total",
			Help: "Total number of failed user directory lookups, by operation.",
		},
		[]string{"operation"},
	)
)

// RateLimitRejectionsTotal counts requests refused with 429, by limiter backend.
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// DBOpenConnections tracks open connections in the sql.DB pool. It is sampled
// by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is
// cancelled.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("db stats collector stopped")
				return
			case <-ticker.C:
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	})
}
