package goVerify

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/internal/rate"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/otp"
	"github.com/MrEthical07/goVerify/password"
	"github.com/MrEthical07/goVerify/risk"
)

// Builder assembles an [Engine]. Every stage defaults to its built-in
// implementation; With* methods replace individual collaborators. A Builder
// can be used for a single Build.
type Builder struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	auditSink AuditSink
	delivery  otp.Delivery
	admission AdmissionLimiter

	hasher       credential.Hasher
	matcher      biometric.Matcher
	scorer       risk.Scorer
	credentials  CredentialVerifier
	secondFactor SecondFactorVerifier
	biometrics   BiometricVerifier
	keyLayers    KeyLayerCodec
	riskAssessor RiskAssessor

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the time source of the engine and its built-in stages.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in
// the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the pipeline latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithCodeDelivery sets the out-of-band channel for issued codes. The default
// discards codes.
func (b *Builder) WithCodeDelivery(d otp.Delivery) *Builder {
	b.delivery = d
	return b
}

// WithAdmissionLimiter installs an admission limiter, for example a
// Redis-backed one shared across instances.
func (b *Builder) WithAdmissionLimiter(l AdmissionLimiter) *Builder {
	b.admission = l
	return b
}

// WithHasher replaces the Argon2id hasher of the built-in credential store.
func (b *Builder) WithHasher(h credential.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithTemplateMatcher replaces the cosine matcher of the built-in biometric stage.
func (b *Builder) WithTemplateMatcher(m biometric.Matcher) *Builder {
	b.matcher = m
	return b
}

// WithRiskScorer replaces the baseline scorer of the built-in risk stage.
func (b *Builder) WithRiskScorer(s risk.Scorer) *Builder {
	b.scorer = s
	return b
}

// WithCredentialVerifier replaces the credential stage.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.credentials = v
	return b
}

// WithSecondFactorVerifier replaces the second-factor stage.
func (b *Builder) WithSecondFactorVerifier(v SecondFactorVerifier) *Builder {
	b.secondFactor = v
	return b
}

// WithBiometricVerifier replaces the biometric stage.
func (b *Builder) WithBiometricVerifier(v BiometricVerifier) *Builder {
	b.biometrics = v
	return b
}

// WithKeyLayerCodec replaces the key-layer proof stage.
func (b *Builder) WithKeyLayerCodec(c KeyLayerCodec) *Builder {
	b.keyLayers = c
	return b
}

// WithRiskAssessor replaces the risk gate.
func (b *Builder) WithRiskAssessor(r RiskAssessor) *Builder {
	b.riskAssessor = r
	return b
}

// Build validates the configuration and assembles the engine.
//
// Build returns an error when the configuration is inconsistent, a key is
// unusable, or the builder was already used.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		now:       now,
		delivery:  b.delivery,
		admission: b.admission,
		metrics:   NewMetrics(cfg.Metrics),
		accessLog: newAccessLog(cfg.AccessLog.Capacity),
	}
	if engine.delivery == nil {
		engine.delivery = otp.DiscardDelivery{}
	}
	if engine.admission == nil && cfg.Admission.Enabled {
		engine.admission = rate.NewLocal(cfg.Admission.PerSecond, cfg.Admission.Burst)
	}

	// -------- CREDENTIAL --------
	if b.credentials != nil {
		engine.credentials = b.credentials
	} else {
		hasher := b.hasher
		if hasher == nil {
			ph, err := password.NewArgon2(password.Config{
				Memory:         cfg.Password.Memory,
				Time:           cfg.Password.Time,
				Parallelism:    cfg.Password.Parallelism,
				SaltLength:     cfg.Password.SaltLength,
				KeyLength:      cfg.Password.KeyLength,
				MinSecretBytes: cfg.Password.MinSecretBytes,
				MaxSecretBytes: cfg.Password.MaxSecretBytes,
			})
			if err != nil {
				return nil, err
			}
			hasher = ph
		}
		store, err := credential.NewStore(hasher, credential.Config{
			Threshold: cfg.Credential.LockoutThreshold,
			Window:    cfg.Credential.LockoutWindow,
		}, credential.WithClock(now))
		if err != nil {
			return nil, err
		}
		engine.credentialStore = store
		engine.credentials = store
	}

	// -------- SECOND FACTOR --------
	if b.secondFactor != nil {
		engine.secondFactor = b.secondFactor
	} else {
		issuer, err := otp.NewIssuer(otp.Config{
			Digits:           cfg.SecondFactor.Digits,
			TTL:              cfg.SecondFactor.CodeTTL,
			MaxAttempts:      cfg.SecondFactor.MaxAttempts,
			Period:           cfg.SecondFactor.DerivedPeriod,
			DerivedDigits:    cfg.SecondFactor.DerivedDigits,
			Algorithm:        cfg.SecondFactor.DerivedAlgorithm,
			Skew:             cfg.SecondFactor.DerivedSkew,
			Issuer:           cfg.SecondFactor.Issuer,
			BackupCodeLength: cfg.SecondFactor.BackupCodeLength,
			BackupCodeCount:  cfg.SecondFactor.BackupCodeCount,
		}, otp.WithClock(now))
		if err != nil {
			return nil, err
		}
		engine.codeIssuer = issuer
		engine.secondFactor = issuer
	}

	// -------- BIOMETRIC --------
	if b.biometrics != nil {
		engine.biometrics = b.biometrics
	} else {
		store := biometric.NewStore()
		engine.templateStore = store
		engine.biometrics = biometric.NewVerifier(store, b.matcher, cfg.Biometric.Thresholds)
	}

	// -------- KEY LAYERS --------
	if b.keyLayers != nil {
		engine.keyLayers = b.keyLayers
	} else {
		codec := keylayer.NewCodec(keylayer.WithClock(now))
		engine.layerCodec = codec
		engine.keyLayers = codec
	}

	// -------- RISK --------
	if b.riskAssessor != nil {
		engine.risk = b.riskAssessor
	} else {
		scorer := b.scorer
		if scorer == nil {
			scorer = risk.BaselineScorer{
				MinSamples:   cfg.Risk.MinSamples,
				ClientWeight: cfg.Risk.ClientWeight,
				HourWeight:   cfg.Risk.HourWeight,
			}
		}
		re := risk.NewEngine(
			risk.WithScorer(scorer),
			risk.WithHistorySize(cfg.Risk.HistorySize),
			risk.WithChallengeTTL(cfg.Risk.ChallengeTTL),
			risk.WithClock(now),
		)
		engine.riskEngine = re
		engine.risk = re
	}

	// -------- GRANTS --------
	if cfg.Grant.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Grant.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Grant.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Grant.PrivateKey),
			PublicKey:     cloneBytes(cfg.Grant.PublicKey),
			Issuer:        cfg.Grant.Issuer,
			Audience:      cfg.Grant.Audience,
			Leeway:        cfg.Grant.Leeway,
			KeyID:         cfg.Grant.KeyID,
		})
		if err != nil {
			return nil, err
		}
		engine.grants = jm
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true
	logger.Info("verification engine built",
		"admission", engine.admission != nil,
		"grants", engine.grants != nil,
		"audit", engine.audit != nil,
	)

	return engine, nil
}
