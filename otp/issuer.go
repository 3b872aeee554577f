package otp

import (
	"context"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrEmptyIdentity is returned when an operation names no identity.
	ErrEmptyIdentity = errors.New("otp identity is empty")
	// ErrInvalidSecret is returned when a derived-code secret cannot be decoded.
	ErrInvalidSecret = errors.New("otp derived secret invalid")
	// ErrInvalidConfig is returned by [NewIssuer] for unusable settings.
	ErrInvalidConfig = errors.New("otp config invalid")
)

// Config controls code formats and lifetimes. Zero values take the defaults
// from [DefaultConfig].
type Config struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int

	Period        int
	DerivedDigits int
	Algorithm     string
	Skew          int
	Issuer        string

	BackupCodeLength int
	BackupCodeCount  int
}

// DefaultConfig returns six-digit issued codes living 300 seconds with three
// attempts, and SHA1 derived codes on a 30 second step without skew.
func DefaultConfig() Config {
	return Config{
		Digits:           6,
		TTL:              300 * time.Second,
		MaxAttempts:      3,
		Period:           30,
		DerivedDigits:    6,
		Algorithm:        "SHA1",
		Skew:             0,
		Issuer:           "goVerify",
		BackupCodeLength: 10,
		BackupCodeCount:  8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Digits == 0 {
		c.Digits = d.Digits
	}
	if c.TTL == 0 {
		c.TTL = d.TTL
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Period == 0 {
		c.Period = d.Period
	}
	if c.DerivedDigits == 0 {
		c.DerivedDigits = d.DerivedDigits
	}
	if c.Algorithm == "" {
		c.Algorithm = d.Algorithm
	}
	if c.Issuer == "" {
		c.Issuer = d.Issuer
	}
	if c.BackupCodeLength == 0 {
		c.BackupCodeLength = d.BackupCodeLength
	}
	if c.BackupCodeCount == 0 {
		c.BackupCodeCount = d.BackupCodeCount
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Digits < 6 || c.Digits > 10:
		return fmt.Errorf("%w: digits must be in [6,10]", ErrInvalidConfig)
	case c.TTL <= 0:
		return fmt.Errorf("%w: ttl must be > 0", ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be >= 1", ErrInvalidConfig)
	case c.Period < 1:
		return fmt.Errorf("%w: period must be >= 1", ErrInvalidConfig)
	case c.DerivedDigits != 6 && c.DerivedDigits != 8:
		return fmt.Errorf("%w: derived digits must be 6 or 8", ErrInvalidConfig)
	case c.Skew < 0 || c.Skew > 2:
		return fmt.Errorf("%w: skew must be in [0,2]", ErrInvalidConfig)
	case c.BackupCodeLength < 8:
		return fmt.Errorf("%w: backup code length must be >= 8", ErrInvalidConfig)
	case c.BackupCodeCount < 1:
		return fmt.Errorf("%w: backup code count must be >= 1", ErrInvalidConfig)
	}
	if _, err := parseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Delivery hands an issued code to an out-of-band channel.
type Delivery interface {
	Deliver(ctx context.Context, identity, code string) error
}

// DeliveryFunc adapts a function to [Delivery].
type DeliveryFunc func(ctx context.Context, identity, code string) error

// Deliver calls f.
func (f DeliveryFunc) Deliver(ctx context.Context, identity, code string) error {
	return f(ctx, identity, code)
}

// DiscardDelivery drops every code.
type DiscardDelivery struct{}

// Deliver implements [Delivery].
func (DiscardDelivery) Deliver(context.Context, string, string) error { return nil }

// IssuedCode is the retained state of an outstanding issued code.
type IssuedCode struct {
	Digest   [32]byte  `json:"digest"`
	IssuedAt time.Time `json:"issued_at"`
	Attempts int       `json:"attempts"`
}

// Record is the persisted form of one identity's second-factor state.
type Record struct {
	Identity      string      `json:"identity"`
	Issued        *IssuedCode `json:"issued,omitempty"`
	DerivedSecret []byte      `json:"derived_secret,omitempty"`
	Backup        [][32]byte  `json:"backup,omitempty"`
}

type slot struct {
	mu     sync.Mutex
	issued *IssuedCode
	secret []byte
	backup [][32]byte
}

// Option customizes an [Issuer].
type Option func(*Issuer)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithRandomIndex replaces the uniform index source used for code generation.
func WithRandomIndex(fn func(n int) (int, error)) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.randomIndex = fn
		}
	}
}

// Issuer owns per-identity issued codes, derived secrets and backup codes.
type Issuer struct {
	cfg         Config
	now         func() time.Time
	randomIndex func(int) (int, error)

	mu    sync.RWMutex
	slots map[string]*slot
}

// NewIssuer validates cfg and returns an empty issuer.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	i := &Issuer{
		cfg:         cfg,
		now:         time.Now,
		randomIndex: cryptoRandomIndex,
		slots:       make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Config returns the effective configuration.
func (i *Issuer) Config() Config {
	return i.cfg
}

// Issue generates a fresh numeric code for identity, discarding any
// outstanding one and resetting the attempt counter.
func (i *Issuer) Issue(identity string) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", ErrEmptyIdentity
	}
	code, err := randomString("0123456789", i.cfg.Digits, i.randomIndex)
	if err != nil {
		return "", err
	}

	s := i.slot(identity, true)
	s.mu.Lock()
	s.issued = &IssuedCode{Digest: codeDigest(identity, code), IssuedAt: i.now()}
	s.mu.Unlock()
	return code, nil
}

// Verify checks candidate against identity's outstanding issued code.
//
// A matching code is consumed. An expired code, or one whose attempt budget
// is already spent, is discarded and fails. A mismatch costs one attempt.
func (i *Issuer) Verify(identity, candidate string) bool {
	s := i.slot(identity, false)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.issued
	if code == nil {
		return false
	}
	if i.now().Sub(code.IssuedAt) > i.cfg.TTL || code.Attempts >= i.cfg.MaxAttempts {
		s.issued = nil
		return false
	}

	want := codeDigest(identity, strings.TrimSpace(candidate))
	if subtle.ConstantTimeCompare(want[:], code.Digest[:]) == 1 {
		s.issued = nil
		return true
	}
	code.Attempts++
	return false
}

// Outstanding returns a copy of identity's outstanding issued code.
func (i *Issuer) Outstanding(identity string) (IssuedCode, bool) {
	s := i.slot(identity, false)
	if s == nil {
		return IssuedCode{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued == nil {
		return IssuedCode{}, false
	}
	return *s.issued, true
}

// RegisterDerivedSecret installs a base32 shared secret for identity.
func (i *Issuer) RegisterDerivedSecret(identity, secretBase32 string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	raw, err := decodeSecret(secretBase32)
	if err != nil {
		return err
	}
	s := i.slot(identity, true)
	s.mu.Lock()
	s.secret = raw
	s.mu.Unlock()
	return nil
}

// HasDerivedSecret reports whether identity can use derived codes.
func (i *Issuer) HasDerivedSecret(identity string) bool {
	s := i.slot(identity, false)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.secret) > 0
}

// VerifyDerived recomputes the derived code for the current time step and
// compares it with candidate. Nothing is consumed. An identity with no
// secret fails without error.
func (i *Issuer) VerifyDerived(identity, candidate string) (bool, error) {
	s := i.slot(identity, false)
	if s == nil {
		return false, nil
	}
	s.mu.Lock()
	secret := append([]byte(nil), s.secret...)
	s.mu.Unlock()
	if len(secret) == 0 {
		return false, nil
	}
	return derivedMatch(secret, candidate, i.now(), i.cfg)
}

// GenerateBackupCodes replaces identity's backup codes with n fresh ones and
// returns them formatted for display. n <= 0 uses the configured count.
func (i *Issuer) GenerateBackupCodes(identity string, n int) ([]string, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrEmptyIdentity
	}
	if n <= 0 {
		n = i.cfg.BackupCodeCount
	}

	codes := make([]string, 0, n)
	digests := make([][32]byte, 0, n)
	for k := 0; k < n; k++ {
		raw, err := randomString(BackupAlphabet, i.cfg.BackupCodeLength, i.randomIndex)
		if err != nil {
			return nil, err
		}
		digests = append(digests, codeDigest(identity, raw))
		codes = append(codes, formatBackupCode(raw))
	}

	s := i.slot(identity, true)
	s.mu.Lock()
	s.backup = digests
	s.mu.Unlock()
	return codes, nil
}

// VerifyBackup consumes a matching backup code for identity.
func (i *Issuer) VerifyBackup(identity, code string) bool {
	s := i.slot(identity, false)
	if s == nil {
		return false
	}
	want := codeDigest(identity, canonicalBackupCode(code))

	s.mu.Lock()
	defer s.mu.Unlock()
	match := -1
	for k := range s.backup {
		if subtle.ConstantTimeCompare(want[:], s.backup[k][:]) == 1 {
			match = k
		}
	}
	if match < 0 {
		return false
	}
	s.backup = append(s.backup[:match], s.backup[match+1:]...)
	return true
}

// BackupRemaining returns how many unused backup codes identity holds.
func (i *Issuer) BackupRemaining(identity string) int {
	s := i.slot(identity, false)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backup)
}

// Export returns every identity's second-factor state.
func (i *Issuer) Export() []Record {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]Record, 0, len(i.slots))
	for id, s := range i.slots {
		s.mu.Lock()
		r := Record{
			Identity:      id,
			DerivedSecret: append([]byte(nil), s.secret...),
			Backup:        append([][32]byte(nil), s.backup...),
		}
		if s.issued != nil {
			c := *s.issued
			r.Issued = &c
		}
		s.mu.Unlock()
		out = append(out, r)
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

// Import installs records verbatim.
func (i *Issuer) Import(records []Record) error {
	if err := ValidateRecords(records); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, r := range records {
		s := &slot{
			secret: append([]byte(nil), r.DerivedSecret...),
			backup: append([][32]byte(nil), r.Backup...),
		}
		if r.Issued != nil {
			c := *r.Issued
			s.issued = &c
		}
		i.slots[r.Identity] = s
	}
	return nil
}

func (i *Issuer) slot(identity string, create bool) *slot {
	i.mu.RLock()
	s := i.slots[identity]
	i.mu.RUnlock()
	if s != nil || !create {
		return s
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if s = i.slots[identity]; s == nil {
		s = &slot{}
		i.slots[identity] = s
	}
	return s
}

func decodeSecret(secretBase32 string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secretBase32), "="))
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cleaned)
	if err != nil || len(raw) < 10 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
