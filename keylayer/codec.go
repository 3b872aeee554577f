package keylayer

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCorruptedPayload means a sealed payload failed to validate.
	ErrCorruptedPayload = errors.New("key layer payload corrupted")
	// ErrNoLayers means the identity has no key layers registered.
	ErrNoLayers = errors.New("key layers not registered")
	// ErrMissingKeyMaterial means a registered layer has unusable key material.
	ErrMissingKeyMaterial = errors.New("key layer material missing")
	// ErrEmptyIdentity is returned when registering for an empty identity.
	ErrEmptyIdentity = errors.New("key layer identity is empty")
	// ErrUnknownKind is returned when registering an unknown layer kind.
	ErrUnknownKind = errors.New("key layer kind unknown")
)

var envelopeMagic = []byte("GVK1")

// Rotation is a layer's rotation due date.
type Rotation struct {
	Identity string
	Kind     Kind
	DueAt    time.Time
}

// Record is the persisted form of one identity's layer set.
type Record struct {
	Identity string  `json:"identity"`
	Layers   []Layer `json:"layers"`
}

// Option customizes a [Codec].
type Option func(*Codec)

// WithClock replaces the time source used for provisioning.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRand replaces the randomness source for key material and nonces.
func WithRand(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.rand = r
		}
	}
}

// Codec owns per-identity key layer sets.
type Codec struct {
	now  func() time.Time
	rand io.Reader

	mu   sync.RWMutex
	sets map[string][]Layer
}

// NewCodec returns a codec with no registered identities.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now, rand: rand.Reader, sets: make(map[string][]Layer)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provision generates fresh material for every kind in [DefaultOrder] and
// replaces identity's layer set.
func (c *Codec) Provision(identity string) ([]Rotation, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrEmptyIdentity
	}
	now := c.now()
	layers := make([]Layer, 0, len(DefaultOrder))
	for _, k := range DefaultOrder {
		l, err := newLayer(k, c.rand, now)
		if err != nil {
			return nil, fmt.Errorf("provision %s layer: %w", k, err)
		}
		layers = append(layers, l)
	}

	c.mu.Lock()
	c.sets[identity] = layers
	c.mu.Unlock()
	return c.Rotations(identity), nil
}

// Register installs layers for identity in the given innermost-first order.
// Key material is validated on use, not here.
func (c *Codec) Register(identity string, layers []Layer) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	for _, l := range layers {
		if !l.Kind.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownKind, l.Kind)
		}
	}

	c.mu.Lock()
	c.sets[identity] = cloneLayers(layers)
	c.mu.Unlock()
	return nil
}

// Layers returns a copy of identity's layer set.
func (c *Codec) Layers(identity string) []Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneLayers(c.sets[identity])
}

// Seal wraps plaintext through every layer of identity, innermost first.
func (c *Codec) Seal(identity string, plaintext []byte) ([]byte, error) {
	layers, err := c.usableLayers(identity)
	if err != nil {
		return nil, err
	}

	payload := plaintext
	for _, l := range layers {
		payload, err = l.seal(identity, payload, c.rand)
		if err != nil {
			return nil, fmt.Errorf("seal %s layer: %w", l.Kind, err)
		}
	}

	out := make([]byte, 0, len(envelopeMagic)+1+len(payload))
	out = append(out, envelopeMagic...)
	out = append(out, byte(len(layers)))
	return append(out, payload...), nil
}

// Open unwraps sealed through identity's layers, outermost first.
//
// Any framing or authentication failure returns an error wrapping
// [ErrCorruptedPayload] and no plaintext.
func (c *Codec) Open(identity string, sealed []byte) ([]byte, error) {
	layers, err := c.usableLayers(identity)
	if err != nil {
		return nil, err
	}

	header := len(envelopeMagic) + 1
	if len(sealed) < header || !bytes.Equal(sealed[:len(envelopeMagic)], envelopeMagic) {
		return nil, fmt.Errorf("%w: bad envelope", ErrCorruptedPayload)
	}
	if int(sealed[len(envelopeMagic)]) != len(layers) {
		return nil, fmt.Errorf("%w: layer count mismatch", ErrCorruptedPayload)
	}

	payload := sealed[header:]
	for i := len(layers) - 1; i >= 0; i-- {
		payload, err = layers[i].open(identity, payload)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Rotations returns identity's per-layer rotation due dates.
func (c *Codec) Rotations(identity string) []Rotation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	layers := c.sets[identity]
	out := make([]Rotation, 0, len(layers))
	for _, l := range layers {
		out = append(out, Rotation{Identity: identity, Kind: l.Kind, DueAt: l.RotationDueAt})
	}
	return out
}

// DueRotations lists every layer whose rotation is due at or before now,
// ordered by due date.
func (c *Codec) DueRotations(now time.Time) []Rotation {
	c.mu.RLock()
	var out []Rotation
	for id, layers := range c.sets {
		for _, l := range layers {
			if !l.RotationDueAt.After(now) {
				out = append(out, Rotation{Identity: id, Kind: l.Kind, DueAt: l.RotationDueAt})
			}
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			if out[i].Identity == out[j].Identity {
				return out[i].Kind < out[j].Kind
			}
			return out[i].Identity < out[j].Identity
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

// Export returns every identity's layer set.
func (c *Codec) Export() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, 0, len(c.sets))
	for id, layers := range c.sets {
		out = append(out, Record{Identity: id, Layers: cloneLayers(layers)})
	}
	return out
}

// ValidateRecords checks records without installing them.
func ValidateRecords(records []Record) error {
	for _, r := range records {
		if strings.TrimSpace(r.Identity) == "" {
			return ErrEmptyIdentity
		}
		for _, l := range r.Layers {
			if !l.Kind.Valid() {
				return fmt.Errorf("%w: %d", ErrUnknownKind, l.Kind)
			}
		}
	}
	return nil
}

// Import installs records verbatim.
func (c *Codec) Import(records []Record) error {
	if err := ValidateRecords(records); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.sets[r.Identity] = cloneLayers(r.Layers)
	}
	return nil
}

func (c *Codec) usableLayers(identity string) ([]Layer, error) {
	c.mu.RLock()
	layers := cloneLayers(c.sets[identity])
	c.mu.RUnlock()

	if len(layers) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoLayers, identity)
	}
	if len(layers) > 255 {
		return nil, fmt.Errorf("%w: too many layers", ErrMissingKeyMaterial)
	}
	for _, l := range layers {
		if err := l.checkMaterial(); err != nil {
			return nil, err
		}
	}
	return layers, nil
}

func cloneLayers(layers []Layer) []Layer {
	if layers == nil {
		return nil
	}
	out := make([]Layer, len(layers))
	for i, l := range layers {
		l.Material = slices.Clone(l.Material)
		out[i] = l
	}
	return out
}
