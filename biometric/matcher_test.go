package biometric

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{0.2, 0.4, 0.9}, b: []float64{0.2, 0.4, 0.9}, want: 1},
		{name: "scaled", a: []float64{1, 2, 3}, b: []float64{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite clamps to zero", a: []float64{1, 1}, b: []float64{-1, -1}, want: 0},
		{name: "length mismatch", a: []float64{1, 2, 3}, b: []float64{1, 2}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
		{name: "zero magnitude", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "nan component", a: []float64{math.NaN(), 1}, b: []float64{1, 1}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Similarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Similarity = %v, want %v", got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("Similarity out of range: %v", got)
			}
		})
	}
}

func TestAcceptIsStrict(t *testing.T) {
	if Accept(0.95, 0.95) {
		t.Fatal("score equal to threshold must not be accepted")
	}
	if !Accept(0.9500001, 0.95) {
		t.Fatal("score above threshold must be accepted")
	}
}
