// Package keylayer seals payloads through an identity's ordered list of
// cryptographic layers and opens them in the inverse order.
//
// # Layers
//
// Layers are applied innermost first:
//
//	symmetric   AES-256-GCM                          rotates every 30 days
//	stream      XChaCha20-Poly1305, HKDF-derived key rotates every 180 days
//	asymmetric  anonymous Curve25519 sealed box      rotates every 365 days
//
// Every layer frame starts with its kind byte and the envelope records the
// layer count, so [Codec.Open] needs nothing beyond the identity to validate
// the exact inverse sequence. The identity is bound as associated data in
// the AEAD layers.
//
// # What this package must NOT do
//
//   - Execute rotations; it only reports due dates.
//   - Return partial plaintext when any layer fails to validate.
package keylayer
