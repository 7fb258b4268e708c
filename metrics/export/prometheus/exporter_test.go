package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/procureauth"
	"github.com/gin-gonic/gin"
)

type fakeSource struct {
	snapshot procureauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() procureauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{
			Counters:   map[procureauth.MetricID]uint64{},
			Histograms: map[procureauth.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{
			Counters: map[procureauth.MetricID]uint64{
				procureauth.MetricLoginSuccess: 7,
			},
			Histograms: map[procureauth.MetricID][]uint64{
				procureauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "procureauth_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "procureauth_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "procureauth_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "procureauth_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{
			Counters:   map[procureauth.MetricID]uint64{procureauth.MetricLoginSuccess: 1},
			Histograms: map[procureauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderListsEveryCounter(t *testing.T) {
	counters := map[procureauth.MetricID]uint64{}
	for id := 0; id < procureauth.MetricIDCount; id++ {
		counters[procureauth.MetricID(id)] = 1
	}
	out := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{Counters: counters},
	}).Render()

	for _, name := range []string{
		"procureauth_refresh_reuse_detected_total 1",
		"procureauth_mfa_rate_limited_total 1",
		"procureauth_csrf_rejected_total 1",
		"procureauth_validate_latency_seconds_count 0",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %q in output, got:\n%s", name, out)
		}
	}
}

func TestGinHandlerServesExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{
			Counters: map[procureauth.MetricID]uint64{procureauth.MetricLogout: 4},
		},
	})
	r.GET("/metrics", exp.GinHandler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "procureauth_logout_total 4") {
		t.Fatalf("expected logout counter, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: procureauth.MetricsSnapshot{
			Counters: map[procureauth.MetricID]uint64{
				procureauth.MetricLoginSuccess:     1000,
				procureauth.MetricLoginFailure:     40,
				procureauth.MetricRefreshSuccess:   800,
				procureauth.MetricRefreshFailure:   10,
				procureauth.MetricMFAVerifySuccess: 300,
				procureauth.MetricRecoveryCodeUsed: 2,
				procureauth.MetricLogout:           500,
			},
			Histograms: map[procureauth.MetricID][]uint64{
				procureauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
