package risk

import (
	"sync"
	"testing"
	"time"
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

func TestChallengeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := NewEngine(WithClock(clock.Now))

	ch, err := e.Challenge("admin")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if len(ch.Nonce) != 32 || len(ch.Response) != 64 {
		t.Fatalf("unexpected challenge shape %+v", ch)
	}
	if !e.VerifyChallenge("admin", ch) {
		t.Fatal("expected challenge to verify")
	}

	forged := ch
	forged.Response = ch.Response[:63] + "0"
	if forged.Response == ch.Response {
		forged.Response = ch.Response[:63] + "1"
	}
	if e.VerifyChallenge("admin", forged) {
		t.Fatal("forged response must fail")
	}
	if e.VerifyChallenge("operator", ch) {
		t.Fatal("challenge must be bound to identity")
	}

	clock.Advance(31 * time.Second)
	if e.VerifyChallenge("admin", ch) {
		t.Fatal("stale challenge must fail")
	}
}

func TestChallengeKeyIsStable(t *testing.T) {
	e := NewEngine()
	a, _ := e.Challenge("admin")
	b, _ := e.Challenge("admin")
	if a.Nonce == b.Nonce {
		t.Fatal("nonces must differ")
	}
	if !e.VerifyChallenge("admin", a) || !e.VerifyChallenge("admin", b) {
		t.Fatal("both challenges should verify under the same key")
	}
}

func TestScoreUsesPriorHistoryOnly(t *testing.T) {
	var seen []int
	e := NewEngine(WithScorer(ScorerFunc(func(history []Interaction, _ Interaction) float64 {
		seen = append(seen, len(history))
		return 0.25
	})))

	for i := 0; i < 3; i++ {
		in := Interaction{LoginHour: 9}
		if got := e.Score("admin", in); got != 0.25 {
			t.Fatalf("unexpected score %v", got)
		}
		e.UpdateHistory("admin", in)
	}
	if seen[0] != 0 || seen[1] != 1 || seen[2] != 2 {
		t.Fatalf("scorer saw unexpected history lengths %v", seen)
	}
	if last, ok := e.LastScore("admin"); !ok || last != 0.25 {
		t.Fatalf("expected last score 0.25, got %v ok=%v", last, ok)
	}
}

func TestScoreIsClamped(t *testing.T) {
	e := NewEngine(WithScorer(StaticScorer(7)))
	if got := e.Score("admin", Interaction{}); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
}

func TestSummaryBuckets(t *testing.T) {
	e := NewEngine(WithScorer(ScorerFunc(func(_ []Interaction, cur Interaction) float64 {
		return float64(cur.LoginHour) / 10
	})))
	e.Score("a", Interaction{LoginHour: 9})
	e.Score("b", Interaction{LoginHour: 5})
	e.Score("c", Interaction{LoginHour: 1})
	e.UpdateHistory("unscored", Interaction{})

	s := e.Summary()
	if s.High != 1 || s.Medium != 1 || s.Low != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestHistoryBoundedPerIdentity(t *testing.T) {
	e := NewEngine(WithHistorySize(5))
	for i := 0; i < 8; i++ {
		e.UpdateHistory("admin", Interaction{LoginHour: i})
	}
	e.UpdateHistory("other", Interaction{LoginHour: 23})

	h := e.History("admin")
	if len(h) != 5 || h[0].LoginHour != 3 {
		t.Fatalf("unexpected history %+v", h)
	}
	if len(e.History("other")) != 1 {
		t.Fatal("identities must not share history")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := NewEngine(WithClock(clock.Now))
	ch, _ := e.Challenge("admin")
	e.UpdateHistory("admin", Interaction{LoginHour: 7, Client: "x"})
	e.Score("admin", Interaction{LoginHour: 7})

	restored := NewEngine(WithClock(clock.Now))
	if err := restored.Import(e.Export()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !restored.VerifyChallenge("admin", ch) {
		t.Fatal("challenge key must survive restore")
	}
	if len(restored.History("admin")) != 1 {
		t.Fatal("history must survive restore")
	}
	if _, ok := restored.LastScore("admin"); !ok {
		t.Fatal("score must survive restore")
	}
}

func TestConcurrentHistoryUpdates(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.UpdateHistory("admin", Interaction{LoginHour: i % 24})
		}(i)
	}
	wg.Wait()
	if got := len(e.History("admin")); got != 64 {
		t.Fatalf("expected 64 entries, got %d", got)
	}
}
