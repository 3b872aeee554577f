package credential

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/password"
)

type plainHasher struct {
	verifies atomic.Int64
}

func (h *plainHasher) Hash(secret string) (string, error) { return "plain:" + secret, nil }

func (h *plainHasher) Verify(secret, encoded string) (bool, error) {
	h.verifies.Add(1)
	if !strings.HasPrefix(encoded, "plain:") {
		return false, errors.New("bad digest")
	}
	return encoded == "plain:"+secret, nil
}

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

func newTestStore(t *testing.T) (*Store, *plainHasher, *fakeClock) {
	t.Helper()
	h := &plainHasher{}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s, err := NewStore(h, Config{}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Register("admin", "SecurePassword123!"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s, h, clock
}

func TestCheckAcceptsCorrectSecret(t *testing.T) {
	s, _, _ := newTestStore(t)

	got, err := s.Check("admin", "SecurePassword123!")
	if err != nil || got != Accepted {
		t.Fatalf("expected Accepted, got %v err=%v", got, err)
	}
}

func TestCheckUnknownIdentityCreatesNoState(t *testing.T) {
	s, h, _ := newTestStore(t)
	before := h.verifies.Load()

	for i := 0; i < 5; i++ {
		got, err := s.Check("ghost", "anything")
		if err != nil || got != Rejected {
			t.Fatalf("expected Rejected for unknown identity, got %v err=%v", got, err)
		}
	}
	if _, ok := s.Lockout("ghost"); ok {
		t.Fatal("unknown identity must not acquire lockout state")
	}
	if h.verifies.Load()-before != 5 {
		t.Fatal("expected a decoy comparison per unknown-identity check")
	}
}

func TestLockoutMonotonicity(t *testing.T) {
	s, h, clock := newTestStore(t)

	for i := 0; i < DefaultThreshold; i++ {
		if got, _ := s.Check("admin", "wrong"); got != Rejected {
			t.Fatalf("attempt %d: expected Rejected, got %v", i+1, got)
		}
	}

	before := h.verifies.Load()
	if got, _ := s.Check("admin", "SecurePassword123!"); got != LockedOut {
		t.Fatalf("expected LockedOut with correct secret, got %v", got)
	}
	if h.verifies.Load() != before {
		t.Fatal("locked-out check must not compare secrets")
	}

	for i := 0; i < 3; i++ {
		_, _ = s.Check("admin", "wrong")
	}
	state, _ := s.Lockout("admin")
	if state.ConsecutiveFailures != DefaultThreshold {
		t.Fatalf("active lockout must not increment counter, got %d", state.ConsecutiveFailures)
	}

	clock.Advance(DefaultWindow)
	if got, _ := s.Check("admin", "SecurePassword123!"); got != Accepted {
		t.Fatalf("expected Accepted after window, got %v", got)
	}
	state, _ = s.Lockout("admin")
	if state != (LockoutState{}) {
		t.Fatalf("expected cleared lockout, got %+v", state)
	}
}

func TestLockoutWindowBoundary(t *testing.T) {
	s, _, clock := newTestStore(t)
	for i := 0; i < DefaultThreshold; i++ {
		_, _ = s.Check("admin", "wrong")
	}

	clock.Advance(DefaultWindow - time.Second)
	if !s.Locked("admin") {
		t.Fatal("expected lockout one second before window end")
	}
	clock.Advance(time.Second)
	if s.Locked("admin") {
		t.Fatal("expected lockout to lapse at window end")
	}
}

func TestFailureAfterWindowRelocks(t *testing.T) {
	s, _, clock := newTestStore(t)
	for i := 0; i < DefaultThreshold; i++ {
		_, _ = s.Check("admin", "wrong")
	}
	clock.Advance(DefaultWindow + time.Second)

	if got, _ := s.Check("admin", "wrong"); got != Rejected {
		t.Fatalf("expected Rejected, got %v", got)
	}
	if got, _ := s.Check("admin", "SecurePassword123!"); got != LockedOut {
		t.Fatalf("expected renewed lockout, got %v", got)
	}
}

func TestCheckMalformedDigestIsError(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.RegisterDigest("broken", "garbage"); err != nil {
		t.Fatalf("RegisterDigest: %v", err)
	}

	_, err := s.Check("broken", "whatever")
	if !errors.Is(err, ErrDigestUnusable) {
		t.Fatalf("expected ErrDigestUnusable, got %v", err)
	}
	state, _ := s.Lockout("broken")
	if state.ConsecutiveFailures != 0 {
		t.Fatal("malformed digest must not count as a failure")
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.RegisterDigest(" ", "plain:x"); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
	if err := s.RegisterDigest("user", ""); !errors.Is(err, ErrEmptyDigest) {
		t.Fatalf("expected ErrEmptyDigest, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, _ = s.Check("admin", "wrong")

	records := s.Export()

	restored, err := NewStore(&plainHasher{}, Config{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := restored.Import(records); err != nil {
		t.Fatalf("Import: %v", err)
	}

	want, _ := s.Lockout("admin")
	got, ok := restored.Lockout("admin")
	if !ok || got != want {
		t.Fatalf("lockout mismatch: got %+v want %+v", got, want)
	}
}

func TestConcurrentFailuresAreNotLost(t *testing.T) {
	h := &plainHasher{}
	s, err := NewStore(h, Config{Threshold: 1000, Window: time.Hour})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_ = s.Register("admin", "right")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Check("admin", "wrong")
		}()
	}
	wg.Wait()

	state, _ := s.Lockout("admin")
	if state.ConsecutiveFailures != 50 {
		t.Fatalf("expected 50 failures, got %d", state.ConsecutiveFailures)
	}
}

func TestStoreWithArgon2(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	s, err := NewStore(hasher, Config{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Register("admin", "SecurePassword123!"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got, err := s.Check("admin", "SecurePassword123!"); err != nil || got != Accepted {
		t.Fatalf("expected Accepted, got %v err=%v", got, err)
	}
	if got, err := s.Check("admin", "nope"); err != nil || got != Rejected {
		t.Fatalf("expected Rejected, got %v err=%v", got, err)
	}
	if got, err := s.Check("ghost", "nope"); err != nil || got != Rejected {
		t.Fatalf("expected Rejected for unknown identity, got %v err=%v", got, err)
	}
}
