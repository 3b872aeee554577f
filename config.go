package goVerify

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goVerify/biometric"
)

// Config holds every tunable of the pipeline. Obtain a populated value with
// [DefaultConfig] and adjust fields before passing it to [Builder.WithConfig].
type Config struct {
	Credential   CredentialConfig
	Password     PasswordConfig
	SecondFactor SecondFactorConfig
	Biometric    BiometricConfig
	KeyLayer     KeyLayerConfig
	Risk         RiskConfig
	Grant        GrantConfig
	AccessLog    AccessLogConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Admission    AdmissionConfig
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig controls lockout behavior of the credential stage.
type CredentialConfig struct {
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// PasswordConfig holds Argon2id parameters for stored digests.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinSecretBytes int
	MaxSecretBytes int
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// SecondFactorConfig controls issued, derived and backup codes.
type SecondFactorConfig struct {
	Digits           int
	CodeTTL          time.Duration
	MaxAttempts      int
	DerivedPeriod    int
	DerivedDigits    int
	DerivedAlgorithm string // "SHA1" (default), "SHA256" or "SHA512"
	DerivedSkew      int
	Issuer           string
	BackupCodeLength int
	BackupCodeCount  int
}

/*
====================================
BIOMETRIC CONFIG
====================================
*/

// BiometricConfig maps each modality to its acceptance threshold. A
// similarity must be strictly greater than the threshold to pass.
type BiometricConfig struct {
	Thresholds map[biometric.Modality]float64
}

/*
====================================
KEY LAYER CONFIG
====================================
*/

// KeyLayerConfig controls the key-layer proof stage.
type KeyLayerConfig struct {
	ProofPrefix string
}

/*
====================================
RISK CONFIG
====================================
*/

// RiskConfig controls the risk gate.
type RiskConfig struct {
	AcceptanceCeiling float64
	HistorySize       int
	ChallengeTTL      time.Duration
	MinSamples        int
	ClientWeight      float64
	HourWeight        float64
}

/*
====================================
GRANT CONFIG
====================================
*/

// GrantConfig controls signed grant tokens attached to successful results.
type GrantConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AccessLogConfig bounds the in-memory access log.
type AccessLogConfig struct {
	Capacity int
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
ADMISSION CONFIG
====================================
*/

// AdmissionConfig enables the built-in in-process admission limiter. A
// limiter supplied through [Builder.WithAdmissionLimiter] takes precedence.
type AdmissionConfig struct {
	Enabled   bool
	PerSecond float64
	Burst     int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			LockoutThreshold: 3,
			LockoutWindow:    300 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinSecretBytes: 8,
			MaxSecretBytes: 1024,
		},
		SecondFactor: SecondFactorConfig{
			Digits:           6,
			CodeTTL:          300 * time.Second,
			MaxAttempts:      3,
			DerivedPeriod:    30,
			DerivedDigits:    6,
			DerivedAlgorithm: "SHA1",
			DerivedSkew:      0,
			Issuer:           "goVerify",
			BackupCodeLength: 10,
			BackupCodeCount:  8,
		},
		Biometric: BiometricConfig{
			Thresholds: map[biometric.Modality]float64{
				biometric.Fingerprint: 0.95,
				biometric.Voice:       0.92,
				biometric.Face:        0.96,
				biometric.Behavioral:  0.85,
			},
		},
		KeyLayer: KeyLayerConfig{
			ProofPrefix: "auth_challenge",
		},
		Risk: RiskConfig{
			AcceptanceCeiling: 0.1,
			HistorySize:       100,
			ChallengeTTL:      30 * time.Second,
			MinSamples:        5,
			ClientWeight:      0.6,
			HourWeight:        0.4,
		},
		Grant: GrantConfig{
			Enabled:       false,
			TTL:           5 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "goverify",
		},
		AccessLog: AccessLogConfig{
			Capacity: 1000,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Admission: AdmissionConfig{
			Enabled:   false,
			PerSecond: 5,
			Burst:     10,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Grant.PrivateKey = cloneBytes(cfg.Grant.PrivateKey)
	out.Grant.PublicKey = cloneBytes(cfg.Grant.PublicKey)
	if cfg.Biometric.Thresholds != nil {
		out.Biometric.Thresholds = make(map[biometric.Modality]float64, len(cfg.Biometric.Thresholds))
		for m, v := range cfg.Biometric.Thresholds {
			out.Biometric.Thresholds[m] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting in c.
func (c *Config) Validate() error {
	// Credential
	if c.Credential.LockoutThreshold < 1 {
		return errors.New("Credential LockoutThreshold must be >= 1")
	}
	if c.Credential.LockoutWindow <= 0 {
		return errors.New("Credential LockoutWindow must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinSecretBytes < 1 || c.Password.MaxSecretBytes < c.Password.MinSecretBytes {
		return errors.New("Password secret bounds are invalid")
	}

	// Second factor
	if c.SecondFactor.Digits < 6 || c.SecondFactor.Digits > 10 {
		return errors.New("SecondFactor Digits must be between 6 and 10")
	}
	if c.SecondFactor.CodeTTL <= 0 {
		return errors.New("SecondFactor CodeTTL must be > 0")
	}
	if c.SecondFactor.MaxAttempts < 1 {
		return errors.New("SecondFactor MaxAttempts must be >= 1")
	}
	if c.SecondFactor.DerivedPeriod < 1 {
		return errors.New("SecondFactor DerivedPeriod must be >= 1")
	}
	if c.SecondFactor.DerivedDigits != 6 && c.SecondFactor.DerivedDigits != 8 {
		return errors.New("SecondFactor DerivedDigits must be 6 or 8")
	}
	switch c.SecondFactor.DerivedAlgorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("SecondFactor DerivedAlgorithm must be SHA1, SHA256 or SHA512")
	}
	if c.SecondFactor.DerivedSkew < 0 || c.SecondFactor.DerivedSkew > 2 {
		return errors.New("SecondFactor DerivedSkew must be within [0,2]")
	}
	if c.SecondFactor.BackupCodeLength < 8 || c.SecondFactor.BackupCodeCount < 1 {
		return errors.New("SecondFactor backup codes need length >= 8 and count >= 1")
	}

	// Biometric
	for m, v := range c.Biometric.Thresholds {
		if !m.Valid() {
			return fmt.Errorf("Biometric threshold for unknown modality %q", m)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("Biometric threshold for %s must be within [0,1]", m)
		}
	}

	// Risk
	if c.Risk.AcceptanceCeiling <= 0 || c.Risk.AcceptanceCeiling > 1 {
		return errors.New("Risk AcceptanceCeiling must be within (0,1]")
	}
	if c.Risk.HistorySize < 1 {
		return errors.New("Risk HistorySize must be >= 1")
	}
	if c.Risk.ChallengeTTL <= 0 {
		return errors.New("Risk ChallengeTTL must be > 0")
	}
	if c.Risk.MinSamples < 0 || c.Risk.ClientWeight < 0 || c.Risk.HourWeight < 0 {
		return errors.New("Risk scorer parameters must be >= 0")
	}

	// Grant
	if c.Grant.Enabled {
		if c.Grant.TTL <= 0 {
			return errors.New("Grant TTL must be > 0")
		}
		if c.Grant.SigningMethod != "ed25519" && c.Grant.SigningMethod != "hs256" {
			return errors.New("unsupported Grant signing method")
		}
		if len(c.Grant.PrivateKey) == 0 {
			return errors.New("Grant requires PrivateKey")
		}
		if c.Grant.SigningMethod == "ed25519" && len(c.Grant.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	}

	// Observability
	if c.AccessLog.Capacity < 1 {
		return errors.New("AccessLog Capacity must be >= 1")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Admission
	if c.Admission.Enabled && (c.Admission.PerSecond <= 0 || c.Admission.Burst < 1) {
		return errors.New("Admission PerSecond must be > 0 and Burst >= 1")
	}

	return nil
}
