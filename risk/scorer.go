package risk

import "math"

// Scorer computes an anomaly score for current given the prior history.
// Implementations must be deterministic.
type Scorer interface {
	Score(history []Interaction, current Interaction) float64
}

// ScorerFunc adapts a function to [Scorer].
type ScorerFunc func(history []Interaction, current Interaction) float64

// Score calls f.
func (f ScorerFunc) Score(history []Interaction, current Interaction) float64 {
	return f(history, current)
}

// StaticScorer always returns its own value.
type StaticScorer float64

// Score implements [Scorer].
func (s StaticScorer) Score([]Interaction, Interaction) float64 { return float64(s) }

// BaselineScorer measures how far an interaction strays from the identity's
// established pattern. Two signals are weighted:
//
//   - client novelty: 1 when the client fingerprint never appeared in the
//     history, else 0;
//   - hour distance: circular distance in hours to the nearest historical
//     sign-in hour, divided by 12.
//
// Until MinSamples interactions are recorded the score is 0.
type BaselineScorer struct {
	MinSamples   int
	ClientWeight float64
	HourWeight   float64
}

// DefaultBaselineScorer returns the scorer used when none is configured.
func DefaultBaselineScorer() BaselineScorer {
	return BaselineScorer{MinSamples: 5, ClientWeight: 0.6, HourWeight: 0.4}
}

// Score implements [Scorer].
func (b BaselineScorer) Score(history []Interaction, current Interaction) float64 {
	if len(history) == 0 || len(history) < b.MinSamples {
		return 0
	}

	novel := 1.0
	nearest := 12
	for _, h := range history {
		if current.Client != "" && h.Client == current.Client {
			novel = 0
		}
		if d := hourDistance(h.LoginHour, current.LoginHour); d < nearest {
			nearest = d
		}
	}
	if current.Client == "" {
		novel = 0
	}

	return clamp(b.ClientWeight*novel + b.HourWeight*float64(nearest)/12)
}

func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= 24
	if d > 12 {
		d = 24 - d
	}
	return d
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
