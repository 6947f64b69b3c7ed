package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

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

func TestNewOTelExporterFromSourceValidation(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter("test")

	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestOTelExporterObservesCounters(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter("test")

	source := &fakeSource{
		snapshot: recovery.MetricsSnapshot{
			Counters: map[recovery.MetricID]uint64{
				recovery.MetricChallengeRequested: 9,
				recovery.MetricVerifySuccess:      4,
			},
			Histograms: map[recovery.MetricID][]uint64{
				recovery.MetricVerifyLatency: {1, 1, 0, 0, 0, 0, 0, 0},
			},
		},
		dropped: 3,
	}

	exporter, err := NewOTelExporterFromSource(meter, source)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exporter.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := collectedValues(t, rm)
	if values["recovery_challenge_requested_total"] != 9 {
		t.Fatalf("recovery_challenge_requested_total = %d, want 9", values["recovery_challenge_requested_total"])
	}
	if values["recovery_verify_success_total"] != 4 {
		t.Fatalf("recovery_verify_success_total = %d, want 4", values["recovery_verify_success_total"])
	}
	if values["recovery_audit_dropped_total"] != 3 {
		t.Fatalf("recovery_audit_dropped_total = %d, want 3", values["recovery_audit_dropped_total"])
	}
	if values["recovery_verify_latency_seconds_count"] != 2 {
		t.Fatalf("latency count = %d, want 2", values["recovery_verify_latency_seconds_count"])
	}
	// Buckets are exported cumulative.
	if values["recovery_verify_latency_seconds_bucket_le_0_01"] != 2 {
		t.Fatalf("le=0.01 bucket = %d, want 2", values["recovery_verify_latency_seconds_bucket_le_0_01"])
	}
}

func TestOTelExporterClose(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter("test")

	exporter, err := NewOTelExporterFromSource(meter, &fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var nilExporter *OTelExporter
	if err := nilExporter.Close(); err != nil {
		t.Fatalf("nil Close must be a no-op, got %v", err)
	}
}

func collectedValues(t *testing.T, rm metricdata.ResourceMetrics) map[string]int64 {
	t.Helper()

	values := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			}
		}
	}
	return values
}
