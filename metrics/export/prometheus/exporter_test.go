package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:     3,
				goSession.MetricAuthorizeSuccess: 10,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricAuthorizeLatency: {4, 2, 1, 0, 0, 0, 0, 1},
			},
		},
		dropped: 2,
	}
}

func TestRenderIncludesCounters(t *testing.T) {
	out := NewPrometheusExporterFromSource(sampleSource()).Render()

	for _, want := range []string{
		"# TYPE gosession_login_success_total counter",
		"gosession_login_success_total 3",
		"gosession_authorize_success_total 10",
		"gosession_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRenderHistogramIsCumulative(t *testing.T) {
	out := NewPrometheusExporterFromSource(sampleSource()).Render()

	for _, want := range []string{
		"# TYPE gosession_authorize_latency_seconds histogram",
		`gosession_authorize_latency_seconds_bucket{le="0.005"} 4`,
		`gosession_authorize_latency_seconds_bucket{le="0.01"} 6`,
		`gosession_authorize_latency_seconds_bucket{le="0.025"} 7`,
		`gosession_authorize_latency_seconds_bucket{le="+Inf"} 8`,
		"gosession_authorize_latency_seconds_count 8",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	out := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	}).Render()

	if out != "" {
		t.Fatalf("expected empty output for empty source, got:\n%s", out)
	}
}

func TestRenderNilExporter(t *testing.T) {
	var p *PrometheusExporter
	if out := p.Render(); out != "" {
		t.Fatalf("expected empty output from nil exporter, got %q", out)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	handler := NewPrometheusExporterFromSource(sampleSource()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "gosession_login_success_total") {
		t.Fatalf("body missing counters:\n%s", rec.Body.String())
	}
}
