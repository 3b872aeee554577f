package internaldefs

import (
	goVerify "github.com/MrEthical07/goVerify"
)

// CounterDef binds a pipeline counter to its exported name.
type CounterDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

// HistogramDef binds a pipeline histogram to its exported name.
type HistogramDef struct {
	ID   goVerify.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goVerify.MetricAttempt, Name: "goverify_attempts_total", Help: "Attempts that entered the pipeline."},
	{ID: goVerify.MetricSuccess, Name: "goverify_authenticated_total", Help: "Attempts that passed every stage."},
	{ID: goVerify.MetricBlocked, Name: "goverify_blocked_total", Help: "Attempts rejected at some stage."},
	{ID: goVerify.MetricFaulted, Name: "goverify_faulted_total", Help: "Attempts stopped by a configuration fault."},
	{ID: goVerify.MetricAbandoned, Name: "goverify_abandoned_total", Help: "Attempts abandoned because the caller context ended."},
	{ID: goVerify.MetricRateLimited, Name: "goverify_rate_limited_total", Help: "Attempts refused by the admission limiter."},
	{ID: goVerify.MetricCredentialRejected, Name: "goverify_credential_rejected_total", Help: "Rejections at the credential stage."},
	{ID: goVerify.MetricCredentialLockout, Name: "goverify_credential_lockout_total", Help: "Attempts refused by an active lockout."},
	{ID: goVerify.MetricSecondFactorRejected, Name: "goverify_second_factor_rejected_total", Help: "Rejections at the second-factor stage."},
	{ID: goVerify.MetricCodeIssued, Name: "goverify_code_issued_total", Help: "Second-factor codes issued to callers without a proof."},
	{ID: goVerify.MetricBackupCodeUsed, Name: "goverify_backup_code_used_total", Help: "Consumed backup codes."},
	{ID: goVerify.MetricBiometricRejected, Name: "goverify_biometric_rejected_total", Help: "Rejections at the biometric stage."},
	{ID: goVerify.MetricKeyLayerRejected, Name: "goverify_key_layer_rejected_total", Help: "Rejections at the key-layer proof stage."},
	{ID: goVerify.MetricRiskRejected, Name: "goverify_risk_rejected_total", Help: "Rejections at the risk gate."},
	{ID: goVerify.MetricGrantIssued, Name: "goverify_grant_issued_total", Help: "Signed grant tokens."},
}

// StageRejection binds one stage's rejection counter to its label value.
type StageRejection struct {
	ID    goVerify.MetricID
	Stage string
}

// StageRejectionName is the labeled family rendered from StageRejections.
const StageRejectionName = "goverify_stage_rejections_total"

// StageRejections lists the per-stage rejection counters in pipeline order.
var StageRejections = []StageRejection{
	{ID: goVerify.MetricCredentialRejected, Stage: goVerify.StageCredential.String()},
	{ID: goVerify.MetricSecondFactorRejected, Stage: goVerify.StageSecondFactor.String()},
	{ID: goVerify.MetricBiometricRejected, Stage: goVerify.StageBiometric.String()},
	{ID: goVerify.MetricKeyLayerRejected, Stage: goVerify.StageKeyLayerProof.String()},
	{ID: goVerify.MetricRiskRejected, Stage: goVerify.StageRiskGate.String()},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goVerify.MetricPipelineLatency, Name: "goverify_pipeline_latency_seconds", Help: "Latency of authenticated attempts."},
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
