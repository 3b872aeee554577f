package risk

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

const challengeKeySize = 32

var (
	// ErrEmptyIdentity is returned when an operation names no identity.
	ErrEmptyIdentity = errors.New("risk identity is empty")
	// ErrChallengeKey means the identity's challenge key is unusable.
	ErrChallengeKey = errors.New("risk challenge key unusable")
)

// Challenge is a keyed challenge-response artifact. Response is the
// hex-encoded HMAC-SHA256 of the identity and nonce.
type Challenge struct {
	Nonce    string    `json:"nonce"`
	Response string    `json:"response"`
	IssuedAt time.Time `json:"issued_at"`
}

// Record is the persisted form of one identity's risk profile.
type Record struct {
	Identity     string        `json:"identity"`
	History      []Interaction `json:"history"`
	LastScore    float64       `json:"last_score"`
	Scored       bool          `json:"scored"`
	ChallengeKey []byte        `json:"challenge_key"`
}

type profile struct {
	mu        sync.Mutex
	history   *History
	lastScore float64
	scored    bool
	key       []byte
}

// Option customizes an [Engine].
type Option func(*Engine)

// WithScorer replaces the default [BaselineScorer].
func WithScorer(s Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithHistorySize bounds every profile's history.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithChallengeTTL sets how long an issued challenge stays verifiable.
func WithChallengeTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.challengeTTL = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRand replaces the randomness source for keys and nonces.
func WithRand(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// Engine owns per-identity risk profiles.
type Engine struct {
	scorer       Scorer
	capacity     int
	challengeTTL time.Duration
	now          func() time.Time
	rand         io.Reader

	mu       sync.RWMutex
	profiles map[string]*profile
}

// NewEngine returns an engine with no profiles.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scorer:       DefaultBaselineScorer(),
		capacity:     DefaultHistorySize,
		challengeTTL: 30 * time.Second,
		now:          time.Now,
		rand:         rand.Reader,
		profiles:     make(map[string]*profile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Challenge issues a fresh nonce for identity and its expected response. The
// identity's challenge key is created on first use.
func (e *Engine) Challenge(identity string) (Challenge, error) {
	if strings.TrimSpace(identity) == "" {
		return Challenge{}, ErrEmptyIdentity
	}
	p := e.profile(identity, true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.key) == 0 {
		key := make([]byte, challengeKeySize)
		if _, err := io.ReadFull(e.rand, key); err != nil {
			return Challenge{}, fmt.Errorf("%w: %v", ErrChallengeKey, err)
		}
		p.key = key
	}

	nonce := make([]byte, 16)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return Challenge{}, err
	}
	n := hex.EncodeToString(nonce)
	return Challenge{Nonce: n, Response: respond(p.key, identity, n), IssuedAt: e.now()}, nil
}

// VerifyChallenge reports whether ch carries the correct response for
// identity and is still inside the challenge lifetime.
func (e *Engine) VerifyChallenge(identity string, ch Challenge) bool {
	p := e.profile(identity, false)
	if p == nil {
		return false
	}
	if age := e.now().Sub(ch.IssuedAt); age < 0 || age > e.challengeTTL {
		return false
	}

	p.mu.Lock()
	key := p.key
	p.mu.Unlock()
	if len(key) == 0 {
		return false
	}
	want := respond(key, identity, ch.Nonce)
	return hmac.Equal([]byte(want), []byte(ch.Response))
}

// Score evaluates in against identity's current history and records the
// result as the identity's latest score. The history is not modified.
func (e *Engine) Score(identity string, in Interaction) float64 {
	p := e.profile(identity, true)

	p.mu.Lock()
	defer p.mu.Unlock()
	score := clamp(e.scorer.Score(p.history.Snapshot(), in))
	p.lastScore = score
	p.scored = true
	return score
}

// UpdateHistory appends in to identity's history.
func (e *Engine) UpdateHistory(identity string, in Interaction) {
	p := e.profile(identity, true)
	p.mu.Lock()
	p.history.Append(in)
	p.mu.Unlock()
}

// History returns identity's interactions oldest first.
func (e *Engine) History(identity string) []Interaction {
	p := e.profile(identity, false)
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Snapshot()
}

// LastScore returns identity's most recent score.
func (e *Engine) LastScore(identity string) (float64, bool) {
	p := e.profile(identity, false)
	if p == nil {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastScore, p.scored
}

// Summary buckets every scored identity by its latest score.
func (e *Engine) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var s Summary
	for _, p := range e.profiles {
		p.mu.Lock()
		if p.scored {
			s.add(p.lastScore)
		}
		p.mu.Unlock()
	}
	return s
}

// Export returns every identity's profile.
func (e *Engine) Export() []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Record, 0, len(e.profiles))
	for id, p := range e.profiles {
		p.mu.Lock()
		out = append(out, Record{
			Identity:     id,
			History:      p.history.Snapshot(),
			LastScore:    p.lastScore,
			Scored:       p.scored,
			ChallengeKey: slices.Clone(p.key),
		})
		p.mu.Unlock()
	}
	return out
}

// ValidateRecords checks records without installing them.
func ValidateRecords(records []Record) error {
	for _, r := range records {
		if strings.TrimSpace(r.Identity) == "" {
			return ErrEmptyIdentity
		}
	}
	return nil
}

// Import installs records verbatim. Histories longer than the configured
// capacity keep their newest entries.
func (e *Engine) Import(records []Record) error {
	if err := ValidateRecords(records); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		p := &profile{
			history:   NewHistory(e.capacity),
			lastScore: r.LastScore,
			scored:    r.Scored,
			key:       slices.Clone(r.ChallengeKey),
		}
		for _, in := range r.History {
			p.history.Append(in)
		}
		e.profiles[r.Identity] = p
	}
	return nil
}

func (e *Engine) profile(identity string, create bool) *profile {
	e.mu.RLock()
	p := e.profiles[identity]
	e.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p = e.profiles[identity]; p == nil {
		p = &profile{history: NewHistory(e.capacity)}
		e.profiles[identity] = p
	}
	return p
}

func respond(key []byte, identity, nonce string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(identity))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
