package biometric

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// Modality names one biometric channel.
type Modality string

const (
	Fingerprint Modality = "fingerprint"
	Voice       Modality = "voice"
	Face        Modality = "face"
	Behavioral  Modality = "behavioral"
)

// Modalities lists every supported modality in evaluation order.
var Modalities = []Modality{Fingerprint, Voice, Face, Behavioral}

// Valid reports whether m is a supported modality.
func (m Modality) Valid() bool {
	return slices.Contains(Modalities, m)
}

var (
	// ErrEmptyIdentity is returned when enrolling for an empty identity.
	ErrEmptyIdentity = errors.New("biometric identity is empty")
	// ErrUnknownModality is returned for an unsupported modality.
	ErrUnknownModality = errors.New("biometric modality unknown")
	// ErrEmptyTemplate is returned when enrolling an empty vector.
	ErrEmptyTemplate = errors.New("biometric template is empty")
	// ErrInvalidHour is returned when an active hour is outside [0,23].
	ErrInvalidHour = errors.New("biometric active hour out of range")
)

// Record is the persisted form of one identity's enrollment.
type Record struct {
	Identity    string                 `json:"identity"`
	Templates   map[Modality][]float64 `json:"templates"`
	ActiveHours []int                  `json:"active_hours,omitempty"`
}

type enrollment struct {
	templates map[Modality][]float64
	hours     []int
}

// Store holds enrolled templates. Enrolling a modality replaces its previous
// template; no history is kept.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*enrollment
}

// NewStore returns an empty template store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*enrollment)}
}

// Enroll stores a copy of vector as identity's template for modality.
func (s *Store) Enroll(identity string, modality Modality, vector []float64) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	if !modality.Valid() {
		return ErrUnknownModality
	}
	if len(vector) == 0 {
		return ErrEmptyTemplate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(identity)
	e.templates[modality] = slices.Clone(vector)
	return nil
}

// EnrollActiveHours records the hours of day (0-23) in which identity
// usually signs in. An empty list clears the pattern.
func (s *Store) EnrollActiveHours(identity string, hours []int) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	for _, h := range hours {
		if h < 0 || h > 23 {
			return ErrInvalidHour
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(identity)
	e.hours = slices.Clone(hours)
	return nil
}

// Template returns a copy of identity's template for modality.
func (s *Store) Template(identity string, modality Modality) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entries[identity]
	if e == nil {
		return nil, false
	}
	v, ok := e.templates[modality]
	return slices.Clone(v), ok
}

// Enrolled returns identity's enrolled modalities in evaluation order.
func (s *Store) Enrolled(identity string) []Modality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entries[identity]
	if e == nil {
		return nil
	}
	out := make([]Modality, 0, len(e.templates))
	for _, m := range Modalities {
		if _, ok := e.templates[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ActiveHours returns identity's usual sign-in hours, if enrolled.
func (s *Store) ActiveHours(identity string) ([]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entries[identity]
	if e == nil || len(e.hours) == 0 {
		return nil, false
	}
	return slices.Clone(e.hours), true
}

// Export returns every identity's enrollment.
func (s *Store) Export() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.entries))
	for id, e := range s.entries {
		r := Record{
			Identity:    id,
			Templates:   make(map[Modality][]float64, len(e.templates)),
			ActiveHours: slices.Clone(e.hours),
		}
		for m, v := range e.templates {
			r.Templates[m] = slices.Clone(v)
		}
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
		for m := range r.Templates {
			if !m.Valid() {
				return ErrUnknownModality
			}
		}
	}
	return nil
}

// Import installs records verbatim.
func (s *Store) Import(records []Record) error {
	if err := ValidateRecords(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		e := &enrollment{templates: make(map[Modality][]float64, len(r.Templates)), hours: slices.Clone(r.ActiveHours)}
		for m, v := range r.Templates {
			e.templates[m] = slices.Clone(v)
		}
		s.entries[r.Identity] = e
	}
	return nil
}

func (s *Store) entryLocked(identity string) *enrollment {
	e := s.entries[identity]
	if e == nil {
		e = &enrollment{templates: make(map[Modality][]float64)}
		s.entries[identity] = e
	}
	return e
}
