package goVerify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/risk"
	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	testSecret       = "correct horse battery"
	testDerivedSeed  = "JBSWY3DPEHPK3PXPJBSWY3DP"
	testAdminAccount = "admin@example.com"
)

var (
	testFingerprint = []float64{0.12, 0.48, 0.33, 0.91, 0.27}
	testVoice       = []float64{0.7, 0.1, 0.4, 0.2}
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// testConfig keeps Argon2 cheap enough for unit tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func buildTestEngine(t testing.TB, configure func(*Builder)) (*Engine, *testClock) {
	t.Helper()
	clock := newTestClock()
	b := New().WithConfig(testConfig()).WithClock(clock.Now)
	if configure != nil {
		configure(b)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e, clock
}

// enrollFull gives identity every factor the built-in stages need.
func enrollFull(t testing.TB, e *Engine, identity string) {
	t.Helper()
	ctx := context.Background()
	if err := e.RegisterCredential(ctx, identity, testSecret); err != nil {
		t.Fatalf("register credential: %v", err)
	}
	if err := e.RegisterDerivedSecret(ctx, identity, testDerivedSeed); err != nil {
		t.Fatalf("register derived secret: %v", err)
	}
	if err := e.EnrollTemplate(ctx, identity, biometric.Fingerprint, testFingerprint); err != nil {
		t.Fatalf("enroll fingerprint: %v", err)
	}
	if err := e.EnrollTemplate(ctx, identity, biometric.Voice, testVoice); err != nil {
		t.Fatalf("enroll voice: %v", err)
	}
	if _, err := e.ProvisionKeyLayers(ctx, identity); err != nil {
		t.Fatalf("provision key layers: %v", err)
	}
}

func derivedCode(t testing.TB, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(testDerivedSeed, at, totp.ValidateOpts{
		Period:    30,
		Digits:    potp.DigitsSix,
		Algorithm: potp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate derived code: %v", err)
	}
	return code
}

func goodRequest(t testing.TB, identity string, clock *testClock) AuthRequest {
	t.Helper()
	return AuthRequest{
		Identity:     identity,
		Secret:       testSecret,
		SecondFactor: &SecondFactorProof{Kind: ProofDerived, Code: derivedCode(t, clock.Now())},
		Biometrics: []BiometricSample{
			{Modality: biometric.Fingerprint, Vector: testFingerprint},
			{Modality: biometric.Voice, Vector: testVoice},
		},
	}
}

// stageSpy is a set of counting fakes, one per stage. failAt selects the
// stage that rejects; StageNone lets every stage pass.
type stageSpy struct {
	mu     sync.Mutex
	calls  map[Stage]int
	failAt Stage
	hook   func(Stage)
}

func newStageSpy(failAt Stage) *stageSpy {
	return &stageSpy{calls: make(map[Stage]int), failAt: failAt}
}

func (s *stageSpy) record(st Stage) bool {
	s.mu.Lock()
	s.calls[st]++
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(st)
	}
	return s.failAt != st
}

func (s *stageSpy) count(st Stage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[st]
}

func (s *stageSpy) Check(string, string) (credential.Decision, error) {
	if s.record(StageCredential) {
		return credential.Accepted, nil
	}
	return credential.Rejected, nil
}

func (s *stageSpy) Issue(string) (string, error) { return "000000", nil }
func (s *stageSpy) Verify(string, string) bool   { return s.record(StageSecondFactor) }
func (s *stageSpy) VerifyBackup(string, string) bool {
	return s.record(StageSecondFactor)
}
func (s *stageSpy) VerifyDerived(string, string) (bool, error) {
	return s.record(StageSecondFactor), nil
}

func (s *stageSpy) Evaluate(string, []biometric.Sample, *int) (biometric.Outcome, error) {
	if s.record(StageBiometric) {
		return biometric.Outcome{Accepted: true}, nil
	}
	return biometric.Outcome{Reason: "fingerprint similarity below threshold"}, nil
}

func (s *stageSpy) Seal(_ string, p []byte) ([]byte, error) { return append([]byte(nil), p...), nil }
func (s *stageSpy) Open(_ string, b []byte) ([]byte, error) {
	if s.record(StageKeyLayerProof) {
		return b, nil
	}
	return nil, keylayer.ErrCorruptedPayload
}

func (s *stageSpy) Challenge(string) (risk.Challenge, error) {
	return risk.Challenge{Nonce: "n", Response: "r", IssuedAt: time.Now()}, nil
}
func (s *stageSpy) VerifyChallenge(string, risk.Challenge) bool { return true }
func (s *stageSpy) Score(string, risk.Interaction) float64 {
	if s.record(StageRiskGate) {
		return 0
	}
	return 1
}
func (s *stageSpy) UpdateHistory(string, risk.Interaction) {}

func buildSpyEngine(t testing.TB, spy *stageSpy, configure func(*Builder)) *Engine {
	t.Helper()
	e, _ := buildTestEngine(t, func(b *Builder) {
		b.WithCredentialVerifier(spy).
			WithSecondFactorVerifier(spy).
			WithBiometricVerifier(spy).
			WithKeyLayerCodec(spy).
			WithRiskAssessor(spy)
		if configure != nil {
			configure(b)
		}
	})
	return e
}

func spyRequest(identity string) AuthRequest {
	return AuthRequest{
		Identity:     identity,
		Secret:       testSecret,
		SecondFactor: &SecondFactorProof{Kind: ProofDerived, Code: "123456"},
	}
}
