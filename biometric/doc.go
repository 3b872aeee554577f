// Package biometric stores enrolled template vectors per identity and
// modality and evaluates presented samples against them.
//
// Similarity is the cosine of the angle between two equal-length vectors,
// clamped to [0,1]. Vectors of different length score zero. Acceptance is a
// strict comparison against a caller-supplied per-modality threshold.
//
// A [Verifier] requires every enrolled modality to be presented and accepted.
package biometric
