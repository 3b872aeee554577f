package goVerify

import (
	"time"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/risk"
)

// Stage identifies one step of the verification pipeline.
type Stage uint8

const (
	// StageNone marks a result that did not fail at any stage.
	StageNone Stage = iota
	// StageCredential checks the identity's secret.
	StageCredential
	// StageSecondFactor checks an issued, derived or backup code.
	StageSecondFactor
	// StageBiometric matches presented samples against enrolled templates.
	StageBiometric
	// StageKeyLayerProof proves the identity's key layers round-trip.
	StageKeyLayerProof
	// StageRiskGate scores the attempt against the identity's history.
	StageRiskGate
)

// Stages lists the pipeline stages in evaluation order.
var Stages = []Stage{StageCredential, StageSecondFactor, StageBiometric, StageKeyLayerProof, StageRiskGate}

func (s Stage) String() string {
	switch s {
	case StageCredential:
		return "CREDENTIAL"
	case StageSecondFactor:
		return "SECOND_FACTOR"
	case StageBiometric:
		return "BIOMETRIC"
	case StageKeyLayerProof:
		return "KEY_LAYER_PROOF"
	case StageRiskGate:
		return "RISK_GATE"
	default:
		return ""
	}
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name. Unknown names decode to [StageNone].
func (s *Stage) UnmarshalText(b []byte) error {
	*s = StageNone
	for _, st := range Stages {
		if st.String() == string(b) {
			*s = st
			break
		}
	}
	return nil
}

// ResponseLevel is the adaptive response attached to a passing risk gate.
type ResponseLevel = risk.ResponseLevel

// ProofKind selects how a second-factor code is checked.
type ProofKind string

const (
	// ProofDerived is a time-based code derived from the identity's shared secret.
	ProofDerived ProofKind = "derived"
	// ProofIssued is the code most recently issued and delivered out of band.
	ProofIssued ProofKind = "issued"
	// ProofBackup is a single-use backup code.
	ProofBackup ProofKind = "backup"
)

// SecondFactorProof is the caller's answer to the second factor.
type SecondFactorProof struct {
	Kind ProofKind `json:"kind"`
	Code string    `json:"code"`
}

// BiometricSample is one presented biometric vector.
type BiometricSample = biometric.Sample

// AuthRequest is a single pipeline attempt. A nil SecondFactor asks the
// pipeline to issue a code; the attempt is then rejected with
// ChallengeIssued set so the caller can retry with the delivered code.
type AuthRequest struct {
	Identity     string             `json:"identity"`
	Secret       string             `json:"secret"`
	SecondFactor *SecondFactorProof `json:"second_factor,omitempty"`
	Biometrics   []BiometricSample  `json:"biometrics,omitempty"`
	LoginHour    *int               `json:"login_hour,omitempty"`
}

// PipelineResult is the immutable outcome of one attempt.
type PipelineResult struct {
	AttemptID        string        `json:"attempt_id"`
	Identity         string        `json:"identity"`
	Timestamp        time.Time     `json:"timestamp"`
	StagesPassed     int           `json:"stages_passed"`
	Authenticated    bool          `json:"authenticated"`
	FailureStage     Stage         `json:"failure_stage,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	CompositeScore   float64       `json:"composite_score"`
	RiskLevel        float64       `json:"risk_level"`
	AdaptiveResponse ResponseLevel `json:"adaptive_response,omitempty"`
	ChallengeIssued  bool          `json:"challenge_issued,omitempty"`
	GrantToken       string        `json:"grant_token,omitempty"`
	Latency          time.Duration `json:"latency"`
}

// MetricsReport summarizes pipeline outcome counters.
type MetricsReport struct {
	TotalAttempts  uint64        `json:"total_attempts"`
	Successful     uint64        `json:"successful"`
	Blocked        uint64        `json:"blocked"`
	Faulted        uint64        `json:"faulted"`
	Abandoned      uint64        `json:"abandoned"`
	AverageLatency time.Duration `json:"average_latency"`
	SuccessRate    float64       `json:"success_rate"`
}

// StageStatus is the operational status of one stage.
type StageStatus struct {
	Stage      Stage  `json:"stage"`
	Status     string `json:"status"`
	Rejections uint64 `json:"rejections"`
}

// Report is a read-only operational snapshot of the engine.
type Report struct {
	Status           string              `json:"status"`
	GeneratedAt      time.Time           `json:"generated_at"`
	Metrics          MetricsReport       `json:"metrics"`
	Stages           []StageStatus       `json:"stages"`
	Risk             risk.Summary        `json:"risk"`
	AuditDropped     uint64              `json:"audit_dropped"`
	PendingRotations []keylayer.Rotation `json:"pending_rotations"`
	AccessLogSize    int                 `json:"access_log_size"`
}
