package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var errUnsupportedAlgorithm = errors.New("unsupported derived-code algorithm")

// derivedMatch validates candidate against secret for now's time step and
// the configured skew. Malformed candidates fail without error.
func derivedMatch(secret []byte, candidate string, now time.Time, cfg Config) (bool, error) {
	trimmed := strings.TrimSpace(candidate)
	if len(trimmed) != cfg.DerivedDigits || !isNumeric(trimmed) {
		return false, nil
	}
	if len(secret) == 0 {
		return false, errors.New("empty derived-code secret")
	}
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return false, err
	}

	ok, err := totp.ValidateCustom(trimmed, base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), now, totp.ValidateOpts{
		Period:    uint(cfg.Period),
		Skew:      uint(cfg.Skew),
		Digits:    potp.Digits(cfg.DerivedDigits),
		Algorithm: alg,
	})
	if err != nil {
		return false, fmt.Errorf("validate derived code: %w", err)
	}
	return ok, nil
}

func parseAlgorithm(name string) (potp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return potp.AlgorithmSHA1, nil
	case "SHA256":
		return potp.AlgorithmSHA256, nil
	case "SHA512":
		return potp.AlgorithmSHA512, nil
	default:
		return 0, errUnsupportedAlgorithm
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
