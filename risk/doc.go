// Package risk keeps a bounded interaction history per identity, scores new
// interactions against it and runs a keyed challenge-response exchange.
//
// Scores are in [0,1]. Scoring is delegated to a [Scorer] which must be a
// deterministic function of the history and the current interaction;
// [BaselineScorer] is the default and [StaticScorer] pins a value for tests.
//
// [AdaptiveResponse] maps a score onto the fixed escalation ladder using
// strict comparisons, so a score exactly on a boundary falls to the lower tier.
package risk
