package biometric

import "math"

// Matcher scores a presented vector against an enrolled one.
type Matcher interface {
	Similarity(enrolled, presented []float64) float64
	Accept(score, threshold float64) bool
}

// Cosine is the default [Matcher].
type Cosine struct{}

// Similarity implements [Matcher].
func (Cosine) Similarity(enrolled, presented []float64) float64 {
	return Similarity(enrolled, presented)
}

// Accept implements [Matcher].
func (Cosine) Accept(score, threshold float64) bool {
	return Accept(score, threshold)
}

// Similarity returns the cosine similarity of a and b clamped to [0,1].
// Length mismatch, empty input, zero magnitude and non-finite components all
// score zero.
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// Accept reports whether score strictly exceeds threshold.
func Accept(score, threshold float64) bool {
	return score > threshold
}
