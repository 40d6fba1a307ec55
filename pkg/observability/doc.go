// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown plumbing.
//
// Logging is JSON over stdlib slog:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("user approved")
//
// Metrics register on a private registry and serve through Handler():
//
//	metrics := observability.NewMetrics(nil)
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/directories", "200").Inc()
//	mux.Handle("/metrics", metrics.Handler())
//
// Health checks expose liveness and readiness probes over the database:
//
//	checker := observability.NewHealthChecker(db)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
package observability
