package recovery

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricVerifySuccess)
	if m.Enabled() {
		t.Fatal("metrics must be disabled by default")
	}
	if m.Value(MetricVerifySuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricVerifySuccess)
	if nilMetrics.Value(MetricVerifySuccess) != 0 {
		t.Fatal("nil metrics must be a no-op")
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	for i := 0; i < 3; i++ {
		m.Inc(MetricChallengeRequested)
	}
	m.Inc(MetricChallengeFake)

	if got := m.Value(MetricChallengeRequested); got != 3 {
		t.Fatalf("MetricChallengeRequested = %d, want 3", got)
	}
	if got := m.Value(MetricChallengeFake); got != 1 {
		t.Fatalf("MetricChallengeFake = %d, want 1", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricChallengeRequested] != 3 {
		t.Fatalf("snapshot counter = %d, want 3", snap.Counters[MetricChallengeRequested])
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("no histograms expected without latency enabled")
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		2 * time.Millisecond,   // bucket 0
		8 * time.Millisecond,   // bucket 1
		30 * time.Millisecond,  // bucket 2
		700 * time.Millisecond, // bucket 7
	}
	for _, d := range samples {
		m.Observe(MetricVerifyLatency, d)
	}

	// Only the latency metric carries a histogram.
	m.Observe(MetricVerifySuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}

	want := map[int]uint64{0: 1, 1: 1, 2: 1, 7: 1}
	for i, count := range buckets {
		if count != want[i] {
			t.Fatalf("bucket %d = %d, want %d", i, count, want[i])
		}
	}
	if _, ok := snap.Histograms[MetricVerifySuccess]; ok {
		t.Fatal("non-latency metrics must not grow histograms")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const (
		workers   = 8
		perWorker = 1000
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricVerifyWrongCode)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricVerifyWrongCode); got != workers*perWorker {
		t.Fatalf("MetricVerifyWrongCode = %d, want %d", got, workers*perWorker)
	}
}

func TestEngineMetricsFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	f := newTestEngine(t, rdb, cfg, aliceAccount())

	if _, err := f.engine.RequestChallenge(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if _, err := f.engine.RequestChallenge(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if _, err := f.engine.VerifyChallenge(context.Background(), "alice@example.com", wrongCodeFor(f.notifier.lastCode())); err == nil {
		t.Fatal("expected the wrong code to fail")
	}
	if _, err := f.engine.VerifyChallenge(context.Background(), "alice@example.com", f.notifier.lastCode()); err != nil {
		t.Fatalf("VerifyChallenge failed: %v", err)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricChallengeRequested] != 2 {
		t.Fatalf("MetricChallengeRequested = %d, want 2", snap.Counters[MetricChallengeRequested])
	}
	if snap.Counters[MetricChallengeFake] != 1 {
		t.Fatalf("MetricChallengeFake = %d, want 1", snap.Counters[MetricChallengeFake])
	}
	if snap.Counters[MetricVerifyWrongCode] != 1 {
		t.Fatalf("MetricVerifyWrongCode = %d, want 1", snap.Counters[MetricVerifyWrongCode])
	}
	if snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("MetricVerifySuccess = %d, want 1", snap.Counters[MetricVerifySuccess])
	}
}
