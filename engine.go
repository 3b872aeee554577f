package goVerify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/internal/keyedlock"
	"github.com/MrEthical07/goVerify/internal/rate"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/otp"
	"github.com/MrEthical07/goVerify/risk"
	"github.com/google/uuid"
)

// ErrRateLimited is returned by an [AdmissionLimiter] to refuse an attempt.
var ErrRateLimited = rate.ErrRateLimited

// CredentialVerifier checks an identity's secret.
type CredentialVerifier interface {
	Check(identity, secret string) (credential.Decision, error)
}

// SecondFactorVerifier issues and checks second-factor codes.
type SecondFactorVerifier interface {
	Issue(identity string) (string, error)
	Verify(identity, candidate string) bool
	VerifyDerived(identity, candidate string) (bool, error)
	VerifyBackup(identity, code string) bool
}

// BiometricVerifier evaluates presented samples for an identity.
type BiometricVerifier interface {
	Evaluate(identity string, samples []biometric.Sample, loginHour *int) (biometric.Outcome, error)
}

// KeyLayerCodec seals and opens payloads through an identity's key layers.
type KeyLayerCodec interface {
	Seal(identity string, plaintext []byte) ([]byte, error)
	Open(identity string, sealed []byte) ([]byte, error)
}

// RiskAssessor runs the challenge and scoring steps of the risk gate.
type RiskAssessor interface {
	Challenge(identity string) (risk.Challenge, error)
	VerifyChallenge(identity string, ch risk.Challenge) bool
	Score(identity string, in risk.Interaction) float64
	UpdateHistory(identity string, in risk.Interaction)
}

// AdmissionLimiter decides whether an attempt may enter the pipeline.
// Returning an error wrapping [ErrRateLimited] rejects the attempt at the
// credential stage; any other error is a configuration fault.
type AdmissionLimiter interface {
	Admit(ctx context.Context, identity, clientIP string) error
}

// Engine runs the staged verification pipeline. It is safe for concurrent
// use: attempts for distinct identities proceed in parallel while attempts for
// the same identity are serialized.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	credentials  CredentialVerifier
	secondFactor SecondFactorVerifier
	biometrics   BiometricVerifier
	keyLayers    KeyLayerCodec
	risk         RiskAssessor

	// Built-in stores, nil when the matching stage was replaced.
	credentialStore *credential.Store
	codeIssuer      *otp.Issuer
	templateStore   *biometric.Store
	layerCodec      *keylayer.Codec
	riskEngine      *risk.Engine

	delivery  otp.Delivery
	admission AdmissionLimiter
	grants    *jwt.Manager

	locks     keyedlock.Map
	metrics   *Metrics
	latency   latencyMean
	audit     *auditDispatcher
	accessLog *accessLog
	closed    atomic.Bool
}

// attempt carries one pipeline invocation through the stages.
type attempt struct {
	ctx    context.Context
	req    AuthRequest
	client string
	start  time.Time
	res    PipelineResult
}

// stageOutcome is the verdict of one stage: pass, reject with a reason, or
// fault with an error.
type stageOutcome struct {
	passed bool
	reason string
	fault  error
}

func pass() stageOutcome                 { return stageOutcome{passed: true} }
func reject(reason string) stageOutcome  { return stageOutcome{reason: reason} }
func faulted(err error) stageOutcome     { return stageOutcome{fault: err} }
func (o stageOutcome) isFault() bool     { return o.fault != nil }
func (o stageOutcome) isRejection() bool { return !o.passed && o.fault == nil }

// Authenticate runs req through every stage in order and stops at the first
// rejection.
//
// A rejection is a normal outcome: the result has Authenticated false and the
// error is nil. A *ConfigurationFault is returned together with the result
// when a stage's backing state is unusable. When ctx ends before the pipeline
// completes the attempt is abandoned: the error wraps ErrAttemptAbandoned and
// ctx.Err(), and nothing is appended to the access log.
func (e *Engine) Authenticate(ctx context.Context, req AuthRequest) (PipelineResult, error) {
	if e.closed.Load() {
		return PipelineResult{}, ErrEngineClosed
	}
	if strings.TrimSpace(req.Identity) == "" {
		return PipelineResult{}, ErrEmptyIdentity
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.metrics.Inc(MetricAttempt)
	start := e.now()
	run := &attempt{
		ctx:    ctx,
		req:    req,
		client: clientFingerprint(ctx),
		start:  start,
		res: PipelineResult{
			AttemptID: uuid.NewString(),
			Identity:  req.Identity,
			Timestamp: start.UTC(),
		},
	}

	unlock, err := e.locks.Lock(ctx, req.Identity)
	if err != nil {
		return e.abandon(run, err)
	}
	defer unlock()

	if e.admission != nil {
		if out := e.admit(run); !out.passed {
			return e.finish(run, StageCredential, out)
		}
	}

	stages := [...]struct {
		stage Stage
		run   func(*attempt) stageOutcome
	}{
		{StageCredential, e.checkCredential},
		{StageSecondFactor, e.checkSecondFactor},
		{StageBiometric, e.checkBiometric},
		{StageKeyLayerProof, e.checkKeyLayers},
		{StageRiskGate, e.checkRisk},
	}
	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			return e.abandon(run, err)
		}
		out := st.run(run)
		if !out.passed {
			return e.finish(run, st.stage, out)
		}
		run.res.StagesPassed = i + 1
	}

	return e.finish(run, StageNone, pass())
}

func (e *Engine) admit(run *attempt) stageOutcome {
	err := e.admission.Admit(run.ctx, run.req.Identity, clientIPFromContext(run.ctx))
	switch {
	case err == nil:
		return pass()
	case errors.Is(err, ErrRateLimited):
		e.metrics.Inc(MetricRateLimited)
		return reject(reasonRateLimited)
	default:
		return faulted(fmt.Errorf("%w: %v", errAdmissionUnavailable, err))
	}
}

// finish seals the result, updates counters, appends to the access log and
// emits the audit event. failed is StageNone on success.
func (e *Engine) finish(run *attempt, failed Stage, out stageOutcome) (PipelineResult, error) {
	res := run.res
	res.Latency = e.now().Sub(run.start)

	switch {
	case out.isFault():
		res.FailureStage = failed
		res.FailureReason = reasonConfiguration
		fault := &ConfigurationFault{Stage: failed, Err: out.fault}
		e.metrics.Inc(MetricFaulted)
		e.accessLog.append(res)
		e.logger.Error("pipeline configuration fault",
			"attempt_id", res.AttemptID,
			"stage", failed.String(),
			"kind", faultKind(out.fault),
			"error", out.fault,
		)
		e.auditResult(run.ctx, res, auditErrConfiguration)
		return res, fault

	case out.isRejection():
		res.FailureStage = failed
		res.FailureReason = out.reason
		e.metrics.Inc(MetricBlocked)
		e.metrics.Inc(stageRejectMetric(failed))
		e.accessLog.append(res)
		e.logger.Debug("pipeline rejected",
			"attempt_id", res.AttemptID,
			"stage", failed.String(),
			"reason", out.reason,
			"stages_passed", res.StagesPassed,
		)
		e.auditResult(run.ctx, res, rejectionCode(failed, out.reason))
		return res, nil
	}

	res.Authenticated = true
	if e.grants != nil && e.grants.CanSign() {
		token, err := e.grants.CreateGrant(jwt.Grant{
			Identity:  res.Identity,
			AttemptID: res.AttemptID,
			Stages:    res.StagesPassed,
			Score:     res.CompositeScore,
			Level:     string(res.AdaptiveResponse),
		})
		if err != nil {
			e.logger.Warn("grant signing failed", "attempt_id", res.AttemptID, "error", err)
		} else {
			res.GrantToken = token
			e.metrics.Inc(MetricGrantIssued)
		}
	}

	e.metrics.Inc(MetricSuccess)
	e.metrics.Observe(MetricPipelineLatency, res.Latency)
	e.latency.add(res.Latency)
	e.accessLog.append(res)
	e.logger.Debug("pipeline authenticated",
		"attempt_id", res.AttemptID,
		"composite_score", res.CompositeScore,
		"adaptive_response", string(res.AdaptiveResponse),
	)
	e.auditResult(run.ctx, res, "")
	return res, nil
}

func (e *Engine) abandon(run *attempt, cause error) (PipelineResult, error) {
	e.metrics.Inc(MetricAbandoned)
	e.logger.Debug("pipeline abandoned",
		"attempt_id", run.res.AttemptID,
		"stages_passed", run.res.StagesPassed,
		"error", cause,
	)
	e.emitAudit(context.WithoutCancel(run.ctx), auditEventPipelineAbandoned, false,
		run.req.Identity, run.res.AttemptID, StageNone, auditErrAbandoned, nil)
	return PipelineResult{}, fmt.Errorf("%w: %w", ErrAttemptAbandoned, cause)
}

// ParseGrant verifies a grant token produced by a successful attempt.
func (e *Engine) ParseGrant(token string) (*jwt.GrantClaims, error) {
	if e.grants == nil {
		return nil, ErrGrantsDisabled
	}
	claims, err := e.grants.ParseGrant(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrantInvalid, err)
	}
	return claims, nil
}

// MetricsSnapshot returns a copy of the engine counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full queue.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// AccessLog returns the retained results, oldest first.
func (e *Engine) AccessLog() []PipelineResult {
	return e.accessLog.snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Close stops the audit dispatcher after draining queued events. Subsequent
// Authenticate calls return ErrEngineClosed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	e.audit.Close()
}
