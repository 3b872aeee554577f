package goVerify

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/otp"
	"github.com/MrEthical07/goVerify/password"
)

const (
	auditEventPipelineSuccess    = "pipeline_success"
	auditEventPipelineRejected   = "pipeline_rejected"
	auditEventPipelineFault      = "pipeline_fault"
	auditEventPipelineAbandoned  = "pipeline_abandoned"
	auditEventRateLimited        = "rate_limited"
	auditEventCodeIssued         = "second_factor_code_issued"
	auditEventBackupCodeUsed     = "backup_code_used"
	auditEventBackupGenerated    = "backup_codes_generated"
	auditEventCredentialEnrolled = "credential_enrolled"
	auditEventTemplateEnrolled   = "template_enrolled"
	auditEventKeyLayersEnrolled  = "key_layers_enrolled"
	auditEventDerivedEnrolled    = "derived_secret_enrolled"
	auditEventStateRestored      = "state_restored"
)

// AuditErrorCode is the stable, non-sensitive classification attached to
// failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSecondFactor       AuditErrorCode = "second_factor_invalid"
	auditErrChallengeIssued    AuditErrorCode = "second_factor_required"
	auditErrBiometric          AuditErrorCode = "biometric_mismatch"
	auditErrKeyLayer           AuditErrorCode = "key_layer_proof_failed"
	auditErrRisk               AuditErrorCode = "risk_rejected"
	auditErrConfiguration      AuditErrorCode = "configuration_fault"
	auditErrAbandoned          AuditErrorCode = "abandoned"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	attemptID string,
	stage Stage,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Identity:  identity,
		AttemptID: attemptID,
		IP:        clientIPFromContext(ctx),
		Stage:     stage.String(),
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	})
}

func (e *Engine) auditResult(ctx context.Context, res PipelineResult, code AuditErrorCode) {
	eventType := auditEventPipelineRejected
	switch {
	case res.Authenticated:
		eventType = auditEventPipelineSuccess
	case code == auditErrConfiguration:
		eventType = auditEventPipelineFault
	case code == auditErrRateLimited:
		eventType = auditEventRateLimited
	}
	e.emitAudit(ctx, eventType, res.Authenticated, res.Identity, res.AttemptID, res.FailureStage, code, func() map[string]string {
		m := map[string]string{
			"stages_passed": strconv.Itoa(res.StagesPassed),
			"latency_ms":    strconv.Itoa(int(res.Latency.Milliseconds())),
		}
		if res.AdaptiveResponse != "" {
			m["adaptive_response"] = string(res.AdaptiveResponse)
		}
		return m
	})
}

// rejectionCode classifies a rejection reason for audit consumers.
func rejectionCode(stage Stage, reason string) AuditErrorCode {
	switch stage {
	case StageCredential:
		switch reason {
		case reasonLocked:
			return auditErrAccountLocked
		case reasonRateLimited:
			return auditErrRateLimited
		}
		return auditErrInvalidCredentials
	case StageSecondFactor:
		if reason == reasonCodeIssued {
			return auditErrChallengeIssued
		}
		return auditErrSecondFactor
	case StageBiometric:
		return auditErrBiometric
	case StageKeyLayerProof:
		return auditErrKeyLayer
	case StageRiskGate:
		return auditErrRisk
	default:
		return auditErrInternal
	}
}

// faultKind names the underlying defect of a configuration fault without
// exposing identity data.
func faultKind(err error) string {
	switch {
	case errors.Is(err, credential.ErrDigestUnusable), errors.Is(err, password.ErrMalformedDigest):
		return "credential_digest"
	case errors.Is(err, otp.ErrInvalidConfig), errors.Is(err, otp.ErrInvalidSecret):
		return "second_factor_config"
	case errors.Is(err, errDeliveryFailed):
		return "code_delivery"
	case errors.Is(err, biometric.ErrNoTemplates):
		return "biometric_not_enrolled"
	case errors.Is(err, biometric.ErrMissingThreshold):
		return "biometric_threshold"
	case errors.Is(err, keylayer.ErrNoLayers):
		return "key_layers_missing"
	case errors.Is(err, keylayer.ErrMissingKeyMaterial):
		return "key_material"
	case errors.Is(err, errAdmissionUnavailable):
		return "admission"
	default:
		return "internal"
	}
}
