package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot donorAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() donorAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters:   map[donorAuth.MetricID]uint64{},
			Histograms: map[donorAuth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters: map[donorAuth.MetricID]uint64{
				donorAuth.MetricLoginSuccess: 7,
			},
			Histograms: map[donorAuth.MetricID][]uint64{
				donorAuth.MetricBackendLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "donorauth_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "donorauth_backend_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "donorauth_backend_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "donorauth_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestCollectorThroughRegistry(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters: map[donorAuth.MetricID]uint64{
				donorAuth.MetricLogout:          3,
				donorAuth.MetricStateTransition: 5,
			},
			Histograms: map[donorAuth.MetricID][]uint64{
				donorAuth.MetricBackendLatency: {2, 0, 1, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	})

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(exp); err != nil {
		t.Fatalf("register collector: %v", err)
	}

	expected := `
# HELP donorauth_logout_total Logouts.
# TYPE donorauth_logout_total counter
donorauth_logout_total 3
# HELP donorauth_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE donorauth_audit_dropped_total counter
donorauth_audit_dropped_total 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "donorauth_logout_total", "donorauth_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected collected metrics: %v", err)
	}

	histogram := `
# HELP donorauth_backend_latency_seconds Backend call latency histogram.
# TYPE donorauth_backend_latency_seconds histogram
donorauth_backend_latency_seconds_bucket{le="0.005"} 2
donorauth_backend_latency_seconds_bucket{le="0.01"} 2
donorauth_backend_latency_seconds_bucket{le="0.025"} 3
donorauth_backend_latency_seconds_bucket{le="0.05"} 3
donorauth_backend_latency_seconds_bucket{le="0.1"} 3
donorauth_backend_latency_seconds_bucket{le="0.25"} 3
donorauth_backend_latency_seconds_bucket{le="0.5"} 3
donorauth_backend_latency_seconds_bucket{le="+Inf"} 4
donorauth_backend_latency_seconds_sum 0
donorauth_backend_latency_seconds_count 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(histogram), "donorauth_backend_latency_seconds"); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestCollectorSkipsHistogramWhenLatencyOff(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters:   map[donorAuth.MetricID]uint64{donorAuth.MetricLoginSuccess: 1},
			Histograms: map[donorAuth.MetricID][]uint64{},
		},
	})

	// Every counter plus the audit counter, no histogram.
	want := len(exp.counters) + 1
	if got := testutil.CollectAndCount(exp); got != want {
		t.Fatalf("expected %d metrics, got %d", want, got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters:   map[donorAuth.MetricID]uint64{donorAuth.MetricLoginSuccess: 1},
			Histograms: map[donorAuth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "donorauth_login_success_total 1") {
		t.Fatalf("expected counter in body, got:\n%s", body)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: donorAuth.MetricsSnapshot{
			Counters: map[donorAuth.MetricID]uint64{
				donorAuth.MetricLoginSuccess:         1000,
				donorAuth.MetricLoginFailure:         40,
				donorAuth.MetricReconcileAnonymous:   800,
				donorAuth.MetricProfileUpdateSuccess: 10,
				donorAuth.MetricStateTransition:      1800,
				donorAuth.MetricLogoutRemoteFailure:  3,
			},
			Histograms: map[donorAuth.MetricID][]uint64{
				donorAuth.MetricBackendLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
