package keylayer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"
)

// Kind identifies a layer transform. The numeric value is written into
// sealed frames and must stay stable.
type Kind uint8

const (
	Symmetric  Kind = 1
	Stream     Kind = 2
	Asymmetric Kind = 3
)

const keySize = 32

// DefaultOrder is the innermost-first layer order used by [Codec.Provision].
var DefaultOrder = []Kind{Symmetric, Stream, Asymmetric}

func (k Kind) String() string {
	switch k {
	case Symmetric:
		return "symmetric"
	case Stream:
		return "stream"
	case Asymmetric:
		return "asymmetric"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known transform.
func (k Kind) Valid() bool {
	return k >= Symmetric && k <= Asymmetric
}

// RotationInterval is how long key material of kind k stays current.
func (k Kind) RotationInterval() time.Duration {
	switch k {
	case Symmetric:
		return 30 * 24 * time.Hour
	case Stream:
		return 180 * 24 * time.Hour
	case Asymmetric:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// Layer is one entry of an identity's key layer set. For [Asymmetric]
// layers Material is the Curve25519 private key; the public half is derived.
type Layer struct {
	Kind          Kind      `json:"kind"`
	Material      []byte    `json:"material"`
	CreatedAt     time.Time `json:"created_at"`
	RotationDueAt time.Time `json:"rotation_due_at"`
}

var errShortFrame = errors.New("frame shorter than nonce")

func newLayer(kind Kind, rand io.Reader, now time.Time) (Layer, error) {
	material := make([]byte, keySize)
	if _, err := io.ReadFull(rand, material); err != nil {
		return Layer{}, err
	}
	return Layer{
		Kind:          kind,
		Material:      material,
		CreatedAt:     now,
		RotationDueAt: now.Add(kind.RotationInterval()),
	}, nil
}

func (l Layer) checkMaterial() error {
	if len(l.Material) != keySize {
		return fmt.Errorf("%w: %s layer has %d bytes", ErrMissingKeyMaterial, l.Kind, len(l.Material))
	}
	return nil
}

func (l Layer) seal(identity string, inner []byte, rand io.Reader) ([]byte, error) {
	switch l.Kind {
	case Symmetric:
		aead, err := aesGCM(l.Material)
		if err != nil {
			return nil, err
		}
		return sealAEAD(aead, l.Kind, identity, inner, rand)
	case Stream:
		aead, err := xchacha(l.Material, identity)
		if err != nil {
			return nil, err
		}
		return sealAEAD(aead, l.Kind, identity, inner, rand)
	case Asymmetric:
		pub, _, err := keyPair(l.Material)
		if err != nil {
			return nil, err
		}
		out := []byte{byte(l.Kind)}
		return box.SealAnonymous(out, inner, pub, rand)
	default:
		return nil, fmt.Errorf("%w: unknown layer kind %d", ErrMissingKeyMaterial, l.Kind)
	}
}

func (l Layer) open(identity string, frame []byte) ([]byte, error) {
	if len(frame) < 1 || Kind(frame[0]) != l.Kind {
		return nil, fmt.Errorf("%w: expected %s frame", ErrCorruptedPayload, l.Kind)
	}
	body := frame[1:]

	switch l.Kind {
	case Symmetric:
		aead, err := aesGCM(l.Material)
		if err != nil {
			return nil, err
		}
		return openAEAD(aead, l.Kind, identity, body)
	case Stream:
		aead, err := xchacha(l.Material, identity)
		if err != nil {
			return nil, err
		}
		return openAEAD(aead, l.Kind, identity, body)
	case Asymmetric:
		pub, priv, err := keyPair(l.Material)
		if err != nil {
			return nil, err
		}
		out, ok := box.OpenAnonymous(nil, body, pub, priv)
		if !ok {
			return nil, fmt.Errorf("%w: %s layer failed to open", ErrCorruptedPayload, l.Kind)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown layer kind %d", ErrCorruptedPayload, l.Kind)
	}
}

func sealAEAD(aead cipher.AEAD, kind Kind, identity string, inner []byte, rand io.Reader) ([]byte, error) {
	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(inner)+aead.Overhead())
	out[0] = byte(kind)
	nonce := out[1:]
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(out, nonce, inner, associatedData(kind, identity)), nil
}

func openAEAD(aead cipher.AEAD, kind Kind, identity string, body []byte) ([]byte, error) {
	if len(body) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedPayload, errShortFrame)
	}
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	out, err := aead.Open(nil, nonce, ciphertext, associatedData(kind, identity))
	if err != nil {
		return nil, fmt.Errorf("%w: %s layer: %v", ErrCorruptedPayload, kind, err)
	}
	return out, nil
}

func associatedData(kind Kind, identity string) []byte {
	ad := make([]byte, 0, len(identity)+1)
	ad = append(ad, byte(kind))
	return append(ad, identity...)
}

func aesGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKeyMaterial, err)
	}
	return cipher.NewGCM(block)
}

func xchacha(seed []byte, identity string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, seed, nil, []byte("goverify/keylayer/stream/"+identity))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

func keyPair(material []byte) (*[32]byte, *[32]byte, error) {
	var priv, pub [32]byte
	copy(priv[:], material)
	derived, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingKeyMaterial, err)
	}
	copy(pub[:], derived)
	return &pub, &priv, nil
}
