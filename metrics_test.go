package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshSuccess)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricRefreshSuccess); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := m.Value(MetricLoginFailure); got != 0 {
		t.Fatalf("expected untouched counter to be 0, got %d", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricAuthorizeLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics must not count, got %d", got)
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", snap)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricAuthorizeLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsSnapshotCoversAllCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLogout)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("expected %d counters, got %d", metricIDCount, len(snap.Counters))
	}
	if snap.Counters[MetricLogout] != 1 {
		t.Fatalf("expected logout counter 1, got %d", snap.Counters[MetricLogout])
	}
}

func TestMetricsObserveRequiresLatencyEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricAuthorizeLatency, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms without latency enabled, got %+v", snap.Histograms)
	}
}

func TestMetricsObserveBucketBoundaries(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	observations := []time.Duration{
		2 * time.Millisecond,   // bucket 0
		8 * time.Millisecond,   // bucket 1
		20 * time.Millisecond,  // bucket 2
		40 * time.Millisecond,  // bucket 3
		90 * time.Millisecond,  // bucket 4
		200 * time.Millisecond, // bucket 5
		400 * time.Millisecond, // bucket 6
		time.Second,            // bucket 7
	}
	for _, d := range observations {
		m.Observe(MetricAuthorizeLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricAuthorizeLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, count := range buckets {
		if count != 1 {
			t.Fatalf("bucket %d: expected 1 observation, got %d (%v)", i, count, buckets)
		}
	}
}

func TestMetricsObserveIgnoresCounterIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricAuthorizeLatency]
	for i, count := range buckets {
		if count != 0 {
			t.Fatalf("bucket %d unexpectedly counted: %d", i, count)
		}
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const (
		goroutines = 8
		perG       = 1000
	)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricAuthorizeSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricAuthorizeSuccess); got != goroutines*perG {
		t.Fatalf("expected %d, got %d", goroutines*perG, got)
	}
}
