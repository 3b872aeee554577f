package goVerify

import (
	"time"

	"github.com/MrEthical07/goVerify/keylayer"
)

// Report returns a read-only operational snapshot: outcome counters,
// per-stage status, the risk summary and layer rotations that are due.
func (e *Engine) Report() Report {
	now := e.now()
	snap := e.metrics.Snapshot()

	total := snap.Counters[MetricAttempt]
	success := snap.Counters[MetricSuccess]
	m := MetricsReport{
		TotalAttempts:  total,
		Successful:     success,
		Blocked:        snap.Counters[MetricBlocked],
		Faulted:        snap.Counters[MetricFaulted],
		Abandoned:      snap.Counters[MetricAbandoned],
		AverageLatency: e.latency.value(),
	}
	if total > 0 {
		m.SuccessRate = float64(success) / float64(total)
	}

	stages := make([]StageStatus, 0, len(Stages))
	for _, s := range Stages {
		stages = append(stages, StageStatus{
			Stage:      s,
			Status:     e.stageStatus(s),
			Rejections: snap.Counters[stageRejectMetric(s)],
		})
	}

	status := "operational"
	if e.closed.Load() {
		status = "closed"
	}

	r := Report{
		Status:        status,
		GeneratedAt:   now.UTC(),
		Metrics:       m,
		Stages:        stages,
		AuditDropped:  e.audit.Dropped(),
		AccessLogSize: e.accessLog.len(),
	}
	if e.riskEngine != nil {
		r.Risk = e.riskEngine.Summary()
	}
	if e.layerCodec != nil {
		r.PendingRotations = e.layerCodec.DueRotations(now)
	}
	if r.PendingRotations == nil {
		r.PendingRotations = []keylayer.Rotation{}
	}
	return r
}

func (e *Engine) stageStatus(s Stage) string {
	var builtin bool
	switch s {
	case StageCredential:
		builtin = e.credentialStore != nil
	case StageSecondFactor:
		builtin = e.codeIssuer != nil
	case StageBiometric:
		builtin = e.templateStore != nil
	case StageKeyLayerProof:
		builtin = e.layerCodec != nil
	case StageRiskGate:
		builtin = e.riskEngine != nil
	}
	if builtin {
		return "active"
	}
	return "active (external)"
}

// SecurityReport summarizes the security posture implied by the configuration.
type SecurityReport struct {
	Argon2              PasswordConfigReport
	LockoutThreshold    int
	LockoutWindow       time.Duration
	CodeTTL             time.Duration
	CodeMaxAttempts     int
	DerivedAlgorithm    string
	DerivedSkew         int
	BiometricThresholds map[string]float64
	RiskCeiling         float64
	GrantsEnabled       bool
	GrantSigningMethod  string
	GrantTTL            time.Duration
	AdmissionLimited    bool
	AuditEnabled        bool
	AuditDropIfFull     bool
	AccessLogCapacity   int
	ExternalStages      []string
}

// PasswordConfigReport mirrors the Argon2id parameters in use.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the configuration posture. It never includes key
// material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	thresholds := make(map[string]float64, len(c.Biometric.Thresholds))
	for m, v := range c.Biometric.Thresholds {
		thresholds[string(m)] = v
	}

	var external []string
	for _, s := range Stages {
		if e.stageStatus(s) != "active" {
			external = append(external, s.String())
		}
	}

	return SecurityReport{
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		LockoutThreshold:    c.Credential.LockoutThreshold,
		LockoutWindow:       c.Credential.LockoutWindow,
		CodeTTL:             c.SecondFactor.CodeTTL,
		CodeMaxAttempts:     c.SecondFactor.MaxAttempts,
		DerivedAlgorithm:    c.SecondFactor.DerivedAlgorithm,
		DerivedSkew:         c.SecondFactor.DerivedSkew,
		BiometricThresholds: thresholds,
		RiskCeiling:         c.Risk.AcceptanceCeiling,
		GrantsEnabled:       e.grants != nil,
		GrantSigningMethod:  c.Grant.SigningMethod,
		GrantTTL:            c.Grant.TTL,
		AdmissionLimited:    e.admission != nil,
		AuditEnabled:        e.audit != nil,
		AuditDropIfFull:     c.Audit.DropIfFull,
		AccessLogCapacity:   c.AccessLog.Capacity,
		ExternalStages:      external,
	}
}
