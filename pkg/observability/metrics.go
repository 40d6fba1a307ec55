package observability

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AccessDecisionsTotal *prometheus.CounterVec

	// Blob store metrics
	BlobOperationsTotal *prometheus.CounterVec
	BlobErrorsTotal     *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	UsersTotal       prometheus.Gauge
	DirectoriesTotal prometheus.Gauge
	FilesTotal       prometheus.Gauge
	TokensActive     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docvault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_access_decisions_total",
				Help: "Authorization decisions by capability and outcome",
			},
			[]string{"capability", "decision"},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_blob_operations_total",
				Help: "Total number of blob store operations",
			},
			[]string{"operation", "backend"},
		),
		BlobErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_blob_errors_total",
				Help: "Total number of blob store errors",
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_db_connections_active",
			Help: "Number of active database connections",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		UsersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_users_total",
			Help: "Total number of user accounts",
		}),
		DirectoriesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_directories_total",
			Help: "Total number of directories",
		}),
		FilesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_files_total",
			Help: "Total number of stored files",
		}),
		TokensActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docvault_tokens_active",
			Help: "Number of unrevoked, unexpired API tokens",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.BlobOperationsTotal,
		m.BlobErrorsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.UsersTotal,
		m.DirectoriesTotal,
		m.FilesTotal,
		m.TokensActive,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAccessDecision counts one authorization decision.
func (m *Metrics) RecordAccessDecision(capability string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AccessDecisionsTotal.WithLabelValues(capability, decision).Inc()
}

// UpdateDBStats copies connection pool gauges from database/sql stats.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}
