package otp

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestIssuer(t *testing.T) (*Issuer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	i, err := NewIssuer(Config{}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return i, clock
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestIssueProducesFixedWidthNumericCode(t *testing.T) {
	i, _ := newTestIssuer(t)
	for n := 0; n < 50; n++ {
		code, err := i.Issue("admin")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if len(code) != 6 || !isNumeric(code) {
			t.Fatalf("unexpected code %q", code)
		}
	}
	if _, err := i.Issue(""); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
}

func TestIssuedCodeIsSingleUse(t *testing.T) {
	i, _ := newTestIssuer(t)
	code, _ := i.Issue("admin")

	if !i.Verify("admin", code) {
		t.Fatal("expected first verification to pass")
	}
	if i.Verify("admin", code) {
		t.Fatal("expected resubmission to fail")
	}
}

func TestIssueReplacesOutstandingCode(t *testing.T) {
	seq := []int{1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2}
	var mu sync.Mutex
	i, err := NewIssuer(Config{}, WithRandomIndex(func(int) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		v := seq[0]
		seq = seq[1:]
		return v, nil
	}))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	first, _ := i.Issue("admin")
	_ = i.Verify("admin", wrongCode(first))
	second, _ := i.Issue("admin")
	if first != "111111" || second != "222222" {
		t.Fatalf("unexpected deterministic codes %q %q", first, second)
	}

	state, ok := i.Outstanding("admin")
	if !ok || state.Attempts != 0 {
		t.Fatalf("expected fresh attempt counter, got %+v ok=%v", state, ok)
	}
	if i.Verify("admin", first) {
		t.Fatal("replaced code must not verify")
	}
	if !i.Verify("admin", second) {
		t.Fatal("current code must verify")
	}
}

func TestIssuedCodeExpiry(t *testing.T) {
	i, clock := newTestIssuer(t)

	code, _ := i.Issue("admin")
	clock.Advance(300 * time.Second)
	if !i.Verify("admin", code) {
		t.Fatal("code exactly at the expiry boundary should still verify")
	}

	code, _ = i.Issue("admin")
	clock.Advance(301 * time.Second)
	if i.Verify("admin", code) {
		t.Fatal("expired code must fail")
	}
	if _, ok := i.Outstanding("admin"); ok {
		t.Fatal("expired code must be discarded")
	}
}

func TestIssuedCodeAttemptBudget(t *testing.T) {
	i, _ := newTestIssuer(t)
	code, _ := i.Issue("admin")
	bad := wrongCode(code)

	for n := 0; n < 3; n++ {
		if i.Verify("admin", bad) {
			t.Fatal("wrong code must fail")
		}
	}
	if i.Verify("admin", code) {
		t.Fatal("correct code after exhausted attempts must fail")
	}
	if _, ok := i.Outstanding("admin"); ok {
		t.Fatal("exhausted code must be discarded")
	}
}

func TestVerifyWithoutOutstandingCode(t *testing.T) {
	i, _ := newTestIssuer(t)
	if i.Verify("nobody", "123456") {
		t.Fatal("expected failure with no outstanding code")
	}
}

func TestVerifyDerivedMatchesAuthenticatorApp(t *testing.T) {
	i, clock := newTestIssuer(t)

	prov, err := i.ProvisionDerived("admin", "admin@example.com")
	if err != nil {
		t.Fatalf("ProvisionDerived: %v", err)
	}
	if !strings.HasPrefix(prov.URI, "otpauth://totp/") || !strings.Contains(prov.URI, "issuer=goVerify") {
		t.Fatalf("unexpected provisioning uri %q", prov.URI)
	}

	code, err := totp.GenerateCode(prov.Secret, clock.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	for n := 0; n < 2; n++ {
		ok, err := i.VerifyDerived("admin", code)
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected derived code to verify, ok=%v err=%v", n, ok, err)
		}
	}

	clock.Advance(60 * time.Second)
	if ok, _ := i.VerifyDerived("admin", code); ok {
		t.Fatal("stale derived code must fail with zero skew")
	}
}

func TestVerifyDerivedHonoursAlgorithmAndDigits(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	i, err := NewIssuer(Config{Algorithm: "SHA256", DerivedDigits: 8}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	prov, err := i.ProvisionDerived("admin", "")
	if err != nil {
		t.Fatalf("ProvisionDerived: %v", err)
	}

	code, err := totp.GenerateCodeCustom(prov.Secret, clock.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    potp.DigitsEight,
		Algorithm: potp.AlgorithmSHA256,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	if ok, err := i.VerifyDerived("admin", code); err != nil || !ok {
		t.Fatalf("expected SHA256 code to verify, ok=%v err=%v", ok, err)
	}
	if ok, err := i.VerifyDerived("admin", code[:6]); err != nil || ok {
		t.Fatalf("expected short code to fail plainly, ok=%v err=%v", ok, err)
	}
}

func TestVerifyDerivedWithoutSecret(t *testing.T) {
	i, _ := newTestIssuer(t)
	ok, err := i.VerifyDerived("admin", "123456")
	if err != nil || ok {
		t.Fatalf("expected plain failure, ok=%v err=%v", ok, err)
	}
}

func TestRegisterDerivedSecretRejectsGarbage(t *testing.T) {
	i, _ := newTestIssuer(t)
	if err := i.RegisterDerivedSecret("admin", "not base32!"); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
	if err := i.RegisterDerivedSecret("admin", "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("RegisterDerivedSecret: %v", err)
	}
	if !i.HasDerivedSecret("admin") {
		t.Fatal("expected secret to be installed")
	}
}

func TestBackupCodesAreSingleUse(t *testing.T) {
	i, _ := newTestIssuer(t)

	codes, err := i.GenerateBackupCodes("admin", 0)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != DefaultConfig().BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", DefaultConfig().BackupCodeCount, len(codes))
	}
	if !strings.Contains(codes[0], "-") {
		t.Fatalf("expected formatted code, got %q", codes[0])
	}

	lower := strings.ToLower(strings.ReplaceAll(codes[0], "-", " "))
	if !i.VerifyBackup("admin", lower) {
		t.Fatal("expected canonicalized backup code to verify")
	}
	if i.VerifyBackup("admin", codes[0]) {
		t.Fatal("backup code must not verify twice")
	}
	if got := i.BackupRemaining("admin"); got != len(codes)-1 {
		t.Fatalf("expected %d remaining, got %d", len(codes)-1, got)
	}
	if i.VerifyBackup("other", codes[1]) {
		t.Fatal("backup codes are bound to their identity")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	i, clock := newTestIssuer(t)
	_, _ = i.Issue("admin")
	_, _ = i.GenerateBackupCodes("admin", 2)
	_ = i.RegisterDerivedSecret("admin", "JBSWY3DPEHPK3PXP")

	restored, err := NewIssuer(Config{}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if err := restored.Import(i.Export()); err != nil {
		t.Fatalf("Import: %v", err)
	}

	want, _ := i.Outstanding("admin")
	got, ok := restored.Outstanding("admin")
	if !ok || got != want {
		t.Fatalf("issued code mismatch: %+v vs %+v", got, want)
	}
	if restored.BackupRemaining("admin") != 2 || !restored.HasDerivedSecret("admin") {
		t.Fatal("expected backup codes and secret to survive")
	}
}

func TestQRCodeRendersPNG(t *testing.T) {
	png, err := QRCode("otpauth://totp/goVerify:admin?secret=JBSWY3DPEHPK3PXP", 128)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected PNG signature")
	}
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Digits: 4},
		{DerivedDigits: 7},
		{Skew: 5},
		{Algorithm: "MD5"},
		{MaxAttempts: -1},
	} {
		if _, err := NewIssuer(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %+v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}
