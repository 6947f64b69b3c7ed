package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	recovery "github.com/velorent/recovery"
)

type fakeSource struct {
	snapshot recovery.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() recovery.MetricsSnapshot {
	return f.snapshot
}

func (f *fakeSource) AuditDropped() uint64 {
	return f.dropped
}

func populatedSource() *fakeSource {
	return &fakeSource{
		snapshot: recovery.MetricsSnapshot{
			Counters: map[recovery.MetricID]uint64{
				recovery.MetricChallengeRequested: 12,
				recovery.MetricChallengeFake:      3,
				recovery.MetricVerifySuccess:      7,
				recovery.MetricVerifyWrongCode:    4,
			},
			Histograms: map[recovery.MetricID][]uint64{
				recovery.MetricVerifyLatency: {5, 2, 1, 0, 0, 0, 0, 1},
			},
		},
		dropped: 2,
	}
}

func TestRenderCounters(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(populatedSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE recovery_challenge_requested_total counter",
		"recovery_challenge_requested_total 12",
		"recovery_challenge_fake_total 3",
		"recovery_verify_success_total 7",
		"recovery_verify_wrong_code_total 4",
		"recovery_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistogramCumulative(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(populatedSource())
	out := exporter.Render()

	for _, want := range []string{
		"# TYPE recovery_verify_latency_seconds histogram",
		`recovery_verify_latency_seconds_bucket{le="0.005"} 5`,
		`recovery_verify_latency_seconds_bucket{le="0.01"} 7`,
		`recovery_verify_latency_seconds_bucket{le="0.025"} 8`,
		`recovery_verify_latency_seconds_bucket{le="+Inf"} 9`,
		"recovery_verify_latency_seconds_count 9",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: recovery.MetricsSnapshot{
			Counters:   map[recovery.MetricID]uint64{},
			Histograms: map[recovery.MetricID][]uint64{},
		},
	})
	if out := exporter.Render(); out != "" {
		t.Fatalf("expected empty output for an empty source, got:\n%s", out)
	}

	var nilExporter *PrometheusExporter
	if out := nilExporter.Render(); out != "" {
		t.Fatal("nil exporter must render nothing")
	}
}

func TestHandler(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(populatedSource())
	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	if !strings.Contains(string(body), "recovery_challenge_requested_total 12") {
		t.Fatalf("handler body missing counter:\n%s", body)
	}
}
