package observability

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/directories", "200").Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/directories", "200").Inc()

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/directories", "200"))
	if got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
}

func TestRecordAccessDecision(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAccessDecision("view-directory", true)
	m.RecordAccessDecision("view-directory", true)
	m.RecordAccessDecision("upload-file", false)

	if got := testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("view-directory", "allow")); got != 2 {
		t.Errorf("expected 2 allows, got %v", got)
	}
	if got := testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("upload-file", "deny")); got != 1 {
		t.Errorf("expected 1 deny, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UsersTotal.Set(5)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docvault_users_total 5") {
		t.Errorf("expected users gauge in output, got:\n%s", w.Body.String())
	}
}
