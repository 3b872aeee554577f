package goVerify

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationFault classifies every [ConfigurationFault].
	ErrConfigurationFault = errors.New("configuration fault")
	// ErrEmptyIdentity is returned when a request or enrollment names no identity.
	ErrEmptyIdentity = errors.New("identity is empty")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
	// ErrGrantsDisabled is returned by ParseGrant when no grant manager is configured.
	ErrGrantsDisabled = errors.New("grant tokens disabled")
	// ErrGrantInvalid is returned when a grant token fails verification.
	ErrGrantInvalid = errors.New("grant token invalid")
	// ErrEnrollmentUnavailable is returned when the stage backing an enrollment
	// call was replaced by a caller-supplied implementation.
	ErrEnrollmentUnavailable = errors.New("enrollment unavailable for replaced stage")
	// ErrPersistence wraps failures reported by a [Persister].
	ErrPersistence = errors.New("persistence failure")
	// ErrAttemptAbandoned wraps the context error of a cancelled attempt.
	ErrAttemptAbandoned = errors.New("attempt abandoned")
)

// ConfigurationFault reports that a stage could not run because its backing
// state or collaborator is unusable: a malformed stored digest, a missing
// layer set, an enrolled modality without a threshold. It is distinct from a
// rejection, which is a normal outcome returned as a [PipelineResult].
type ConfigurationFault struct {
	Stage Stage
	Err   error
}

func (f *ConfigurationFault) Error() string {
	return fmt.Sprintf("%s: %s stage: %v", ErrConfigurationFault, f.Stage, f.Err)
}

func (f *ConfigurationFault) Unwrap() error { return f.Err }

// Is matches [ErrConfigurationFault].
func (f *ConfigurationFault) Is(target error) bool {
	return target == ErrConfigurationFault
}
