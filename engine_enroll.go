package goVerify

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/otp"
)

// withIdentity runs fn while holding identity's pipeline lock so enrollment
// never interleaves with an in-flight attempt for the same identity.
func (e *Engine) withIdentity(ctx context.Context, identity string, fn func() error) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	if ctx == nil {
		ctx = context.Background()
	}
	unlock, err := e.locks.Lock(ctx, identity)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// RegisterCredential hashes secret and stores it as identity's credential,
// clearing any lockout state.
func (e *Engine) RegisterCredential(ctx context.Context, identity, secret string) error {
	if e.credentialStore == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		if err := e.credentialStore.Register(identity, secret); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventCredentialEnrolled, true, identity, "", StageCredential, "", nil)
		return nil
	})
}

// RegisterCredentialDigest stores a precomputed Argon2id PHC digest.
func (e *Engine) RegisterCredentialDigest(ctx context.Context, identity, digest string) error {
	if e.credentialStore == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		if err := e.credentialStore.RegisterDigest(identity, digest); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventCredentialEnrolled, true, identity, "", StageCredential, "", func() map[string]string {
			return map[string]string{"source": "digest"}
		})
		return nil
	})
}

// Lockout returns identity's credential failure accounting.
func (e *Engine) Lockout(identity string) (credential.LockoutState, bool) {
	if e.credentialStore == nil {
		return credential.LockoutState{}, false
	}
	return e.credentialStore.Lockout(identity)
}

// EnrollTemplate stores vector as identity's template for modality,
// replacing any previous template.
func (e *Engine) EnrollTemplate(ctx context.Context, identity string, modality biometric.Modality, vector []float64) error {
	if e.templateStore == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		if err := e.templateStore.Enroll(identity, modality, vector); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventTemplateEnrolled, true, identity, "", StageBiometric, "", func() map[string]string {
			return map[string]string{"modality": string(modality), "dimensions": strconv.Itoa(len(vector))}
		})
		return nil
	})
}

// EnrollActiveHours restricts identity's accepted login hours (0-23).
func (e *Engine) EnrollActiveHours(ctx context.Context, identity string, hours []int) error {
	if e.templateStore == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		return e.templateStore.EnrollActiveHours(identity, hours)
	})
}

// ProvisionKeyLayers generates fresh material for every layer kind and
// returns the resulting rotation schedule.
func (e *Engine) ProvisionKeyLayers(ctx context.Context, identity string) ([]keylayer.Rotation, error) {
	if e.layerCodec == nil {
		return nil, ErrEnrollmentUnavailable
	}
	var rotations []keylayer.Rotation
	err := e.withIdentity(ctx, identity, func() error {
		r, err := e.layerCodec.Provision(identity)
		if err != nil {
			return err
		}
		rotations = r
		e.emitAudit(ctx, auditEventKeyLayersEnrolled, true, identity, "", StageKeyLayerProof, "", func() map[string]string {
			return map[string]string{"layers": strconv.Itoa(len(r))}
		})
		return nil
	})
	return rotations, err
}

// RegisterKeyLayers installs explicit layers, innermost first.
func (e *Engine) RegisterKeyLayers(ctx context.Context, identity string, layers []keylayer.Layer) error {
	if e.layerCodec == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		if err := e.layerCodec.Register(identity, layers); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventKeyLayersEnrolled, true, identity, "", StageKeyLayerProof, "", func() map[string]string {
			return map[string]string{"layers": strconv.Itoa(len(layers)), "source": "explicit"}
		})
		return nil
	})
}

// ProvisionDerivedCode creates a shared secret for derived codes and returns
// it with an otpauth URI suitable for authenticator apps.
func (e *Engine) ProvisionDerivedCode(ctx context.Context, identity, account string) (otp.Provisioning, error) {
	if e.codeIssuer == nil {
		return otp.Provisioning{}, ErrEnrollmentUnavailable
	}
	var p otp.Provisioning
	err := e.withIdentity(ctx, identity, func() error {
		out, err := e.codeIssuer.ProvisionDerived(identity, account)
		if err != nil {
			return err
		}
		p = out
		e.emitAudit(ctx, auditEventDerivedEnrolled, true, identity, "", StageSecondFactor, "", nil)
		return nil
	})
	return p, err
}

// RegisterDerivedSecret imports an existing base32 shared secret.
func (e *Engine) RegisterDerivedSecret(ctx context.Context, identity, secretBase32 string) error {
	if e.codeIssuer == nil {
		return ErrEnrollmentUnavailable
	}
	return e.withIdentity(ctx, identity, func() error {
		if err := e.codeIssuer.RegisterDerivedSecret(identity, secretBase32); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventDerivedEnrolled, true, identity, "", StageSecondFactor, "", func() map[string]string {
			return map[string]string{"source": "import"}
		})
		return nil
	})
}

// GenerateBackupCodes replaces identity's backup codes with the configured
// number of fresh single-use codes.
func (e *Engine) GenerateBackupCodes(ctx context.Context, identity string) ([]string, error) {
	if e.codeIssuer == nil {
		return nil, ErrEnrollmentUnavailable
	}
	var codes []string
	err := e.withIdentity(ctx, identity, func() error {
		out, err := e.codeIssuer.GenerateBackupCodes(identity, e.config.SecondFactor.BackupCodeCount)
		if err != nil {
			return err
		}
		codes = out
		e.emitAudit(ctx, auditEventBackupGenerated, true, identity, "", StageSecondFactor, "", func() map[string]string {
			return map[string]string{"count": strconv.Itoa(len(out))}
		})
		return nil
	})
	return codes, err
}
