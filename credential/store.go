package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that activates lockout.
	DefaultThreshold = 3
	// DefaultWindow is how long an activated lockout persists after the last failure.
	DefaultWindow = 300 * time.Second
)

var (
	// ErrEmptyIdentity is returned when registering an empty identity.
	ErrEmptyIdentity = errors.New("credential identity is empty")
	// ErrEmptyDigest is returned when registering an empty digest.
	ErrEmptyDigest = errors.New("credential digest is empty")
	// ErrDigestUnusable is returned when a stored digest cannot be evaluated.
	ErrDigestUnusable = errors.New("credential digest unusable")
)

// Decision is the outcome of a credential check.
type Decision uint8

const (
	// Rejected means the secret did not match or the identity is unknown.
	Rejected Decision = iota
	// Accepted means the secret matched and lockout state was cleared.
	Accepted
	// LockedOut means the identity is inside an active lockout window.
	LockedOut
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case LockedOut:
		return "locked_out"
	default:
		return "rejected"
	}
}

// Hasher derives and verifies one-way secret digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

// Config controls lockout accounting.
type Config struct {
	Threshold int
	Window    time.Duration
}

// LockoutState is the failure accounting for one identity.
type LockoutState struct {
	LastFailure         time.Time `json:"last_failure"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Record is the persisted form of one identity's credential state.
type Record struct {
	Identity string       `json:"identity"`
	Digest   string       `json:"digest"`
	Lockout  LockoutState `json:"lockout"`
}

type entry struct {
	mu      sync.Mutex
	digest  string
	lockout LockoutState
}

// Option customizes a [Store].
type Option func(*Store)

// WithClock replaces the time source used for lockout accounting.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store maps identities to secret digests and lockout state.
//
// Store is safe for concurrent use; mutation of one identity never blocks
// checks for another beyond a brief map read lock.
type Store struct {
	hasher Hasher
	cfg    Config
	now    func() time.Time
	decoy  string

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore builds a store backed by hasher. Zero Config fields fall back to
// [DefaultThreshold] and [DefaultWindow].
func NewStore(hasher Hasher, cfg Config, opts ...Option) (*Store, error) {
	if hasher == nil {
		return nil, errors.New("credential hasher is nil")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold < 1 || cfg.Window < 0 {
		return nil, errors.New("credential lockout config invalid")
	}

	s := &Store{
		hasher:  hasher,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	decoy, err := s.makeDecoy()
	if err != nil {
		return nil, fmt.Errorf("credential decoy digest: %w", err)
	}
	s.decoy = decoy
	return s, nil
}

func (s *Store) makeDecoy() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return s.hasher.Hash(hex.EncodeToString(raw))
}

// Register hashes secret and stores it for identity, replacing any previous
// digest and clearing lockout state.
func (s *Store) Register(identity, secret string) error {
	digest, err := s.hasher.Hash(secret)
	if err != nil {
		return err
	}
	return s.RegisterDigest(identity, digest)
}

// RegisterDigest stores a precomputed digest for identity.
func (s *Store) RegisterDigest(identity, digest string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	if digest == "" {
		return ErrEmptyDigest
	}

	s.mu.Lock()
	s.entries[identity] = &entry{digest: digest}
	s.mu.Unlock()
	return nil
}

// Known reports whether identity has a registered digest.
func (s *Store) Known(identity string) bool {
	return s.lookup(identity) != nil
}

// Check compares secret against the stored digest for identity.
//
// Unknown identities are answered with [Rejected] after a decoy comparison.
// A non-nil error wraps [ErrDigestUnusable] and means the stored digest is
// malformed; the lockout state is left untouched in that case.
func (s *Store) Check(identity, secret string) (Decision, error) {
	e := s.lookup(identity)
	if e == nil {
		_, _ = s.hasher.Verify(secret, s.decoy)
		return Rejected, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if s.lockedLocked(e, now) {
		return LockedOut, nil
	}

	ok, err := s.hasher.Verify(secret, e.digest)
	if err != nil {
		return Rejected, fmt.Errorf("%w: %v", ErrDigestUnusable, err)
	}
	if ok {
		e.lockout = LockoutState{}
		return Accepted, nil
	}

	e.lockout.ConsecutiveFailures++
	e.lockout.LastFailure = now
	return Rejected, nil
}

// Lockout returns a copy of identity's lockout state.
func (s *Store) Lockout(identity string) (LockoutState, bool) {
	e := s.lookup(identity)
	if e == nil {
		return LockoutState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockout, true
}

// Locked reports whether identity is inside an active lockout window.
func (s *Store) Locked(identity string) bool {
	e := s.lookup(identity)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.lockedLocked(e, s.now())
}

// Export returns every identity's credential state.
func (s *Store) Export() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.entries))
	for id, e := range s.entries {
		e.mu.Lock()
		out = append(out, Record{Identity: id, Digest: e.digest, Lockout: e.lockout})
		e.mu.Unlock()
	}
	return out
}

// ValidateRecords checks records without installing them.
func ValidateRecords(records []Record) error {
	for _, r := range records {
		if strings.TrimSpace(r.Identity) == "" {
			return ErrEmptyIdentity
		}
		if r.Digest == "" {
			return ErrEmptyDigest
		}
	}
	return nil
}

// Import installs records verbatim, replacing existing state for the same identities.
func (s *Store) Import(records []Record) error {
	if err := ValidateRecords(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.entries[r.Identity] = &entry{digest: r.Digest, lockout: r.Lockout}
	}
	return nil
}

func (s *Store) lookup(identity string) *entry {
	s.mu.RLock()
	e := s.entries[identity]
	s.mu.RUnlock()
	return e
}

func (s *Store) lockedLocked(e *entry, now time.Time) bool {
	return e.lockout.ConsecutiveFailures >= s.cfg.Threshold &&
		now.Sub(e.lockout.LastFailure) < s.cfg.Window
}
