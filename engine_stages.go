package goVerify

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/risk"
	"github.com/google/uuid"
)

// Rejection reasons. Unknown identities and wrong secrets share a reason so
// the two are indistinguishable to callers.
const (
	reasonInvalidCredentials = "invalid credentials"
	reasonLocked             = "account locked"
	reasonRateLimited        = "rate limited"
	reasonCodeIssued         = "second factor required: code issued"
	reasonInvalidSecondFac   = "invalid second factor"
	reasonUnsupportedProof   = "unsupported second factor kind"
	reasonKeyLayerCorrupted  = "key layer proof failed"
	reasonKeyLayerMismatch   = "key layer proof mismatch"
	reasonChallengeFailed    = "risk challenge failed"
	reasonRiskTooHigh        = "risk score above acceptance ceiling"
	reasonConfiguration      = "configuration fault"
)

var (
	errDeliveryFailed       = errors.New("second factor code delivery failed")
	errAdmissionUnavailable = errors.New("admission limiter unavailable")
)

func (e *Engine) checkCredential(run *attempt) stageOutcome {
	decision, err := e.credentials.Check(run.req.Identity, run.req.Secret)
	if err != nil {
		return faulted(err)
	}
	switch decision {
	case credential.Accepted:
		return pass()
	case credential.LockedOut:
		e.metrics.Inc(MetricCredentialLockout)
		return reject(reasonLocked)
	default:
		return reject(reasonInvalidCredentials)
	}
}

// checkSecondFactor verifies the supplied proof. Without a proof a fresh
// code is issued and delivered, and the attempt is rejected with
// ChallengeIssued set.
func (e *Engine) checkSecondFactor(run *attempt) stageOutcome {
	identity := run.req.Identity
	proof := run.req.SecondFactor
	if proof == nil || proof.Code == "" {
		code, err := e.secondFactor.Issue(identity)
		if err != nil {
			return faulted(err)
		}
		if err := e.delivery.Deliver(run.ctx, identity, code); err != nil {
			return faulted(fmt.Errorf("%w: %v", errDeliveryFailed, err))
		}
		e.metrics.Inc(MetricCodeIssued)
		e.emitAudit(run.ctx, auditEventCodeIssued, true, identity, run.res.AttemptID, StageSecondFactor, "", nil)
		run.res.ChallengeIssued = true
		return reject(reasonCodeIssued)
	}

	var ok bool
	switch proof.Kind {
	case ProofDerived, "":
		matched, err := e.secondFactor.VerifyDerived(identity, proof.Code)
		if err != nil {
			return faulted(err)
		}
		ok = matched
	case ProofIssued:
		ok = e.secondFactor.Verify(identity, proof.Code)
	case ProofBackup:
		ok = e.secondFactor.VerifyBackup(identity, proof.Code)
		if ok {
			e.metrics.Inc(MetricBackupCodeUsed)
			e.emitAudit(run.ctx, auditEventBackupCodeUsed, true, identity, run.res.AttemptID, StageSecondFactor, "", nil)
		}
	default:
		return reject(reasonUnsupportedProof)
	}
	if !ok {
		return reject(reasonInvalidSecondFac)
	}
	return pass()
}

func (e *Engine) checkBiometric(run *attempt) stageOutcome {
	out, err := e.biometrics.Evaluate(run.req.Identity, run.req.Biometrics, run.req.LoginHour)
	if err != nil {
		return faulted(err)
	}
	if !out.Accepted {
		return reject(out.Reason)
	}
	return pass()
}

// checkKeyLayers seals a one-off payload through the identity's layers and
// requires the exact bytes back.
func (e *Engine) checkKeyLayers(run *attempt) stageOutcome {
	identity := run.req.Identity
	payload := []byte(e.config.KeyLayer.ProofPrefix + "|" + identity + "|" +
		strconv.FormatInt(e.now().UnixNano(), 10) + "|" + uuid.NewString())

	sealed, err := e.keyLayers.Seal(identity, payload)
	if err != nil {
		return faulted(err)
	}
	opened, err := e.keyLayers.Open(identity, sealed)
	switch {
	case errors.Is(err, keylayer.ErrCorruptedPayload):
		return reject(reasonKeyLayerCorrupted)
	case err != nil:
		return faulted(err)
	case !bytes.Equal(opened, payload):
		return reject(reasonKeyLayerMismatch)
	}
	return pass()
}

// checkRisk issues and verifies a keyed challenge and scores the interaction
// against prior history. The gate passes when the score is strictly below the
// acceptance ceiling; only passing interactions join the history, so a
// rejected client never becomes part of the baseline.
func (e *Engine) checkRisk(run *attempt) stageOutcome {
	identity := run.req.Identity
	ch, err := e.risk.Challenge(identity)
	if err != nil {
		return faulted(err)
	}
	if !e.risk.VerifyChallenge(identity, ch) {
		return reject(reasonChallengeFailed)
	}

	hour := -1
	if run.req.LoginHour != nil {
		hour = *run.req.LoginHour
	}
	in := risk.NewInteraction(e.now(), hour, run.client, ch.Nonce)
	score := e.risk.Score(identity, in)
	if !(score < e.config.Risk.AcceptanceCeiling) {
		return reject(reasonRiskTooHigh)
	}
	e.risk.UpdateHistory(identity, in)

	run.res.RiskLevel = score
	run.res.AdaptiveResponse = risk.AdaptiveResponse(score)
	run.res.CompositeScore = 1 - score
	return pass()
}
