package httpapi

import (
	"errors"
	"time"
)

// Config controls the HTTP surface.
type Config struct {
	// ClientRate is the steady per-client request rate. Zero disables the
	// transport limiter.
	ClientRate  float64
	ClientBurst int
	// ClientIdle evicts limiter entries unused for this long.
	ClientIdle time.Duration

	MaxBodyBytes      int64
	TrustForwardedFor bool

	AdminIdentities []string
	OpenEnrollment  bool

	QRSize int
}

// DefaultConfig returns conservative transport defaults.
func DefaultConfig() Config {
	return Config{
		ClientRate:   5,
		ClientBurst:  10,
		ClientIdle:   10 * time.Minute,
		MaxBodyBytes: 64 << 10,
		QRSize:       256,
	}
}

// Validate checks the transport settings.
func (c Config) Validate() error {
	if c.ClientRate < 0 {
		return errors.New("httpapi: ClientRate must be >= 0")
	}
	if c.ClientRate > 0 && c.ClientBurst <= 0 {
		return errors.New("httpapi: ClientBurst must be > 0 when ClientRate is set")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("httpapi: MaxBodyBytes must be > 0")
	}
	if !c.OpenEnrollment && len(c.AdminIdentities) == 0 {
		return errors.New("httpapi: AdminIdentities required unless OpenEnrollment")
	}
	return nil
}
