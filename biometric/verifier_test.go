package biometric

import (
	"errors"
	"testing"
)

var testThresholds = map[Modality]float64{
	Fingerprint: 0.95,
	Voice:       0.92,
	Face:        0.96,
	Behavioral:  0.85,
}

func enrolledStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for m, v := range map[Modality][]float64{
		Fingerprint: {0.1, 0.5, 0.9, 0.3},
		Voice:       {0.7, 0.2, 0.4},
		Face:        {0.3, 0.3, 0.8, 0.1, 0.6},
	} {
		if err := s.Enroll("admin", m, v); err != nil {
			t.Fatalf("Enroll %s: %v", m, err)
		}
	}
	return s
}

func matchingSamples(t *testing.T, s *Store, identity string) []Sample {
	t.Helper()
	var out []Sample
	for _, m := range s.Enrolled(identity) {
		v, _ := s.Template(identity, m)
		out = append(out, Sample{Modality: m, Vector: v})
	}
	return out
}

func TestEvaluateAllModalitiesMatch(t *testing.T) {
	s := enrolledStore(t)
	v := NewVerifier(s, nil, testThresholds)

	out, err := v.Evaluate("admin", matchingSamples(t, s, "admin"), nil)
	if err != nil || !out.Accepted {
		t.Fatalf("expected acceptance, got %+v err=%v", out, err)
	}
	if len(out.Scores) != 3 {
		t.Fatalf("expected three scores, got %v", out.Scores)
	}
}

func TestEvaluateIsConjunctive(t *testing.T) {
	s := enrolledStore(t)
	v := NewVerifier(s, nil, testThresholds)

	samples := matchingSamples(t, s, "admin")
	for i := range samples {
		if samples[i].Modality == Voice {
			samples[i].Vector = []float64{0.1, 0.9, 0.1}
		}
	}

	out, err := v.Evaluate("admin", samples, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Accepted || out.Modality != Voice {
		t.Fatalf("expected voice rejection, got %+v", out)
	}
}

func TestEvaluateMissingSampleRejects(t *testing.T) {
	s := enrolledStore(t)
	v := NewVerifier(s, nil, testThresholds)

	samples := matchingSamples(t, s, "admin")[:2]
	out, err := v.Evaluate("admin", samples, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Accepted || out.Modality != Face {
		t.Fatalf("expected face missing, got %+v", out)
	}
}

func TestEvaluateDimensionMismatchRejects(t *testing.T) {
	s := enrolledStore(t)
	v := NewVerifier(s, nil, testThresholds)

	samples := matchingSamples(t, s, "admin")
	samples[0].Vector = append(samples[0].Vector, 1)
	out, err := v.Evaluate("admin", samples, nil)
	if err != nil {
		t.Fatalf("dimension mismatch must not be a fault: %v", err)
	}
	if out.Accepted {
		t.Fatal("expected rejection on dimension mismatch")
	}
}

func TestEvaluateConfigurationFaults(t *testing.T) {
	s := enrolledStore(t)

	_, err := NewVerifier(s, nil, testThresholds).Evaluate("nobody", nil, nil)
	if !errors.Is(err, ErrNoTemplates) {
		t.Fatalf("expected ErrNoTemplates, got %v", err)
	}

	partial := map[Modality]float64{Fingerprint: 0.95, Voice: 0.92}
	_, err = NewVerifier(s, nil, partial).Evaluate("admin", matchingSamples(t, s, "admin"), nil)
	if !errors.Is(err, ErrMissingThreshold) {
		t.Fatalf("expected ErrMissingThreshold, got %v", err)
	}
}

func TestEvaluateActiveHours(t *testing.T) {
	s := enrolledStore(t)
	if err := s.EnrollActiveHours("admin", []int{9, 10, 11}); err != nil {
		t.Fatalf("EnrollActiveHours: %v", err)
	}
	v := NewVerifier(s, nil, testThresholds)
	samples := matchingSamples(t, s, "admin")

	inHours, offHours := 10, 3
	if out, _ := v.Evaluate("admin", samples, &inHours); !out.Accepted {
		t.Fatalf("expected acceptance inside usual hours, got %+v", out)
	}
	if out, _ := v.Evaluate("admin", samples, &offHours); out.Accepted {
		t.Fatal("expected rejection outside usual hours")
	}
	if out, _ := v.Evaluate("admin", samples, nil); out.Accepted {
		t.Fatal("expected rejection without a login hour")
	}
}

func TestEnrollReplacesTemplate(t *testing.T) {
	s := enrolledStore(t)
	if err := s.Enroll("admin", Fingerprint, []float64{1, 1}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	got, _ := s.Template("admin", Fingerprint)
	if len(got) != 2 {
		t.Fatalf("expected replaced template, got %v", got)
	}

	if err := s.Enroll("admin", Modality("iris"), []float64{1}); !errors.Is(err, ErrUnknownModality) {
		t.Fatalf("expected ErrUnknownModality, got %v", err)
	}
	if err := s.Enroll("admin", Face, nil); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("expected ErrEmptyTemplate, got %v", err)
	}
	if err := s.EnrollActiveHours("admin", []int{24}); !errors.Is(err, ErrInvalidHour) {
		t.Fatalf("expected ErrInvalidHour, got %v", err)
	}
}

func TestEnrollCopiesInput(t *testing.T) {
	s := NewStore()
	vec := []float64{1, 2, 3}
	_ = s.Enroll("admin", Face, vec)
	vec[0] = 99

	got, _ := s.Template("admin", Face)
	if got[0] != 1 {
		t.Fatal("store must not alias caller vectors")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := enrolledStore(t)
	_ = s.EnrollActiveHours("admin", []int{8})

	restored := NewStore()
	if err := restored.Import(s.Export()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(restored.Enrolled("admin")) != 3 {
		t.Fatal("expected three modalities after import")
	}
	if hours, ok := restored.ActiveHours("admin"); !ok || hours[0] != 8 {
		t.Fatalf("expected active hours to survive, got %v", hours)
	}
}
