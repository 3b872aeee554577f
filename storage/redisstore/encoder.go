package redisstore

import (
	"encoding/json"
	"errors"
	"fmt"

	goVerify "github.com/MrEthical07/goVerify"
)

const stateFormatVersionCurrent = 1

var (
	// ErrUnsupportedVersion is returned for blobs written by an unknown format.
	ErrUnsupportedVersion = errors.New("unsupported state format version")
	// ErrStateCorrupt is returned when a blob cannot be decoded.
	ErrStateCorrupt = errors.New("state blob corrupt")
)

// Encode serializes st behind a one-byte format version.
func Encode(st goVerify.IdentityState) ([]byte, error) {
	if st.Identity == "" {
		return nil, goVerify.ErrEmptyIdentity
	}
	body, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, stateFormatVersionCurrent)
	return append(out, body...), nil
}

// Decode reverses [Encode].
func Decode(data []byte) (goVerify.IdentityState, error) {
	if len(data) == 0 {
		return goVerify.IdentityState{}, ErrStateCorrupt
	}
	if data[0] != stateFormatVersionCurrent {
		return goVerify.IdentityState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}
	var st goVerify.IdentityState
	if err := json.Unmarshal(data[1:], &st); err != nil {
		return goVerify.IdentityState{}, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if st.Identity == "" {
		return goVerify.IdentityState{}, ErrStateCorrupt
	}
	return st, nil
}
