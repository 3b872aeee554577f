package otp

import (
	"fmt"
	"strings"

	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const derivedSecretBytes = 20

// Provisioning is the enrollment material for an authenticator app.
type Provisioning struct {
	Secret string
	URI    string
}

// ProvisionDerived creates and installs a new derived-code secret for
// identity. account is the label shown by the authenticator; it defaults to
// identity.
func (i *Issuer) ProvisionDerived(identity, account string) (Provisioning, error) {
	if strings.TrimSpace(identity) == "" {
		return Provisioning{}, ErrEmptyIdentity
	}
	if account == "" {
		account = identity
	}

	alg, err := parseAlgorithm(i.cfg.Algorithm)
	if err != nil {
		return Provisioning{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      i.cfg.Issuer,
		AccountName: account,
		Period:      uint(i.cfg.Period),
		SecretSize:  derivedSecretBytes,
		Digits:      potp.Digits(i.cfg.DerivedDigits),
		Algorithm:   alg,
	})
	if err != nil {
		return Provisioning{}, fmt.Errorf("generate derived secret: %w", err)
	}
	if err := i.RegisterDerivedSecret(identity, key.Secret()); err != nil {
		return Provisioning{}, err
	}
	return Provisioning{Secret: key.Secret(), URI: key.URL()}, nil
}

// QRCode renders uri as a PNG of the given edge size in pixels.
func QRCode(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
