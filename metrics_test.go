package goVerify

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSuccess)

	if got := m.Value(MetricSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricAttempt)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricAttempt); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		m.Observe(MetricPipelineLatency, d)
	}
	// Only the pipeline latency histogram exists.
	m.Observe(MetricSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricPipelineLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricSuccess)
	m.Inc(MetricBlocked)
	m.Inc(MetricBlocked)
	m.Observe(MetricPipelineLatency, 2*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricSuccess] != 1 {
		t.Fatalf("expected MetricSuccess=1 got %d", snap.Counters[MetricSuccess])
	}
	if snap.Counters[MetricBlocked] != 2 {
		t.Fatalf("expected MetricBlocked=2 got %d", snap.Counters[MetricBlocked])
	}
	if got := snap.Histograms[MetricPipelineLatency][0]; got != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", got)
	}
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("expected every counter in snapshot, got %d", len(snap.Counters))
	}
}

func TestStageRejectMetric(t *testing.T) {
	seen := map[MetricID]bool{}
	for _, s := range Stages {
		id := stageRejectMetric(s)
		if id >= metricIDCount {
			t.Fatalf("stage %s has no reject metric", s)
		}
		if seen[id] {
			t.Fatalf("stage %s shares reject metric %d", s, id)
		}
		seen[id] = true
	}
	if stageRejectMetric(StageNone) != metricIDCount {
		t.Fatal("StageNone must not map to a counter")
	}
}

func TestLatencyMean(t *testing.T) {
	var l latencyMean
	if l.value() != 0 {
		t.Fatalf("expected zero mean, got %v", l.value())
	}
	for _, d := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		l.add(d)
	}
	if got := l.value(); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms mean, got %v", got)
	}
}
