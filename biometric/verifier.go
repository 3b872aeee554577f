package biometric

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrNoTemplates means the identity has nothing enrolled.
	ErrNoTemplates = errors.New("biometric templates not enrolled")
	// ErrMissingThreshold means an enrolled modality has no configured threshold.
	ErrMissingThreshold = errors.New("biometric threshold missing")
)

// Sample is one presented biometric vector.
type Sample struct {
	Modality Modality  `json:"modality"`
	Vector   []float64 `json:"vector"`
}

// Outcome is the result of evaluating one identity's samples.
type Outcome struct {
	Accepted bool
	Modality Modality
	Reason   string
	Scores   map[Modality]float64
}

// Verifier applies per-modality thresholds to a [Store] through a [Matcher].
type Verifier struct {
	store      *Store
	matcher    Matcher
	thresholds map[Modality]float64
}

// NewVerifier builds a verifier. A nil matcher uses [Cosine].
func NewVerifier(store *Store, matcher Matcher, thresholds map[Modality]float64) *Verifier {
	if matcher == nil {
		matcher = Cosine{}
	}
	return &Verifier{store: store, matcher: matcher, thresholds: maps.Clone(thresholds)}
}

// Store returns the backing template store.
func (v *Verifier) Store() *Store {
	return v.store
}

// Evaluate checks samples against every enrolled modality of identity.
//
// A returned error wraps [ErrNoTemplates] or [ErrMissingThreshold] and
// indicates a setup defect rather than a failed match. loginHour is consulted
// only when active hours are enrolled.
func (v *Verifier) Evaluate(identity string, samples []Sample, loginHour *int) (Outcome, error) {
	enrolled := v.store.Enrolled(identity)
	if len(enrolled) == 0 {
		return Outcome{}, fmt.Errorf("%w for %q", ErrNoTemplates, identity)
	}
	for _, m := range enrolled {
		if _, ok := v.thresholds[m]; !ok {
			return Outcome{}, fmt.Errorf("%w for %s", ErrMissingThreshold, m)
		}
	}

	presented := make(map[Modality][]float64, len(samples))
	for _, s := range samples {
		if _, dup := presented[s.Modality]; !dup {
			presented[s.Modality] = s.Vector
		}
	}

	out := Outcome{Scores: make(map[Modality]float64, len(enrolled))}
	for _, m := range enrolled {
		vec, ok := presented[m]
		if !ok {
			out.Modality = m
			out.Reason = string(m) + " sample missing"
			return out, nil
		}
		tpl, _ := v.store.Template(identity, m)
		score := v.matcher.Similarity(tpl, vec)
		out.Scores[m] = score
		if !v.matcher.Accept(score, v.thresholds[m]) {
			out.Modality = m
			out.Reason = string(m) + " similarity below threshold"
			return out, nil
		}
	}

	if hours, ok := v.store.ActiveHours(identity); ok {
		if loginHour == nil || !slices.Contains(hours, *loginHour) {
			out.Modality = Behavioral
			out.Reason = "login hour outside usual pattern"
			return out, nil
		}
	}

	out.Accepted = true
	return out, nil
}
