package goVerify

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricID names one pipeline counter or histogram.
type MetricID uint16

const (
	// MetricAttempt counts every attempt that entered the pipeline.
	MetricAttempt MetricID = iota
	// MetricSuccess counts authenticated attempts.
	MetricSuccess
	// MetricBlocked counts attempts rejected at some stage.
	MetricBlocked
	// MetricFaulted counts attempts stopped by a configuration fault.
	MetricFaulted
	// MetricAbandoned counts attempts whose context ended mid-pipeline.
	MetricAbandoned
	// MetricRateLimited counts attempts refused by the admission limiter.
	MetricRateLimited
	// MetricCredentialRejected counts rejections at the credential stage.
	MetricCredentialRejected
	// MetricCredentialLockout counts attempts refused by an active lockout.
	MetricCredentialLockout
	// MetricSecondFactorRejected counts rejections at the second-factor stage.
	MetricSecondFactorRejected
	// MetricCodeIssued counts codes issued because no proof was supplied.
	MetricCodeIssued
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBiometricRejected counts rejections at the biometric stage.
	MetricBiometricRejected
	// MetricKeyLayerRejected counts rejections at the key-layer proof stage.
	MetricKeyLayerRejected
	// MetricRiskRejected counts rejections at the risk gate.
	MetricRiskRejected
	// MetricGrantIssued counts signed grant tokens.
	MetricGrantIssued
	// MetricPipelineLatency is the latency histogram of completed attempts.
	MetricPipelineLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free pipeline counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a metrics registry honoring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricPipelineLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricPipelineLatency].buckets[i])
		}
		s.Histograms[MetricPipelineLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

func stageRejectMetric(s Stage) MetricID {
	switch s {
	case StageCredential:
		return MetricCredentialRejected
	case StageSecondFactor:
		return MetricSecondFactorRejected
	case StageBiometric:
		return MetricBiometricRejected
	case StageKeyLayerProof:
		return MetricKeyLayerRejected
	case StageRiskGate:
		return MetricRiskRejected
	default:
		return metricIDCount
	}
}

// latencyMean is the running mean latency of successful attempts.
type latencyMean struct {
	mu   sync.Mutex
	n    uint64
	mean float64
}

func (l *latencyMean) add(d time.Duration) {
	l.mu.Lock()
	l.n++
	l.mean += (float64(d) - l.mean) / float64(l.n)
	l.mu.Unlock()
}

func (l *latencyMean) value() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Duration(l.mean)
}
