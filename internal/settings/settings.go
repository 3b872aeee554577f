// Package settings loads process configuration for the goVerify server from
// an optional dotenv file overlaid by GOVERIFY_* environment variables.
package settings

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/transport/httpapi"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Prefix is the environment variable prefix read by [Load].
const Prefix = "GOVERIFY_"

// Settings is a loaded configuration tree.
type Settings struct {
	k *koanf.Koanf
}

// Server holds the process-level settings that are not engine config.
type Server struct {
	ListenAddr     string
	LogLevel       slog.Level
	LogFormat      string
	RedisAddr      string
	RedisPrefix    string
	SaveInterval   time.Duration
	AuditDB        string
	SeedFile       string
	RotationSweep  time.Duration
	ShutdownGrace  time.Duration
	AdmissionRedis bool
}

// Load reads envPath when it exists, then the process environment. A
// missing envPath is not an error.
func Load(envPath string) (*Settings, error) {
	k := koanf.New(".")
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := k.Load(file.Provider(envPath), dotenv.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", envPath, err)
			}
		}
	}
	if err := k.Load(env.Provider(Prefix, ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return &Settings{k: k}, nil
}

func key(name string) string { return Prefix + name }

// String returns the trimmed value of name, or def when unset.
func (s *Settings) String(name, def string) string {
	if !s.k.Exists(key(name)) {
		return def
	}
	return strings.TrimSpace(s.k.String(key(name)))
}

// Int, Float, Bool and Duration parse name the same way.
func (s *Settings) Int(name string, def int) int {
	if !s.k.Exists(key(name)) {
		return def
	}
	return s.k.Int(key(name))
}

func (s *Settings) Float(name string, def float64) float64 {
	if !s.k.Exists(key(name)) {
		return def
	}
	return s.k.Float64(key(name))
}

func (s *Settings) Bool(name string, def bool) bool {
	if !s.k.Exists(key(name)) {
		return def
	}
	return s.k.Bool(key(name))
}

func (s *Settings) Duration(name string, def time.Duration) time.Duration {
	if !s.k.Exists(key(name)) {
		return def
	}
	return s.k.Duration(key(name))
}

// List splits a comma-separated value.
func (s *Settings) List(name string) []string {
	raw := s.String(name, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Server returns the process settings.
func (s *Settings) Server() (Server, error) {
	out := Server{
		ListenAddr:     s.String("LISTEN_ADDR", ":8080"),
		LogFormat:      strings.ToLower(s.String("LOG_FORMAT", "json")),
		RedisAddr:      s.String("REDIS_ADDR", ""),
		RedisPrefix:    s.String("REDIS_PREFIX", "gv"),
		SaveInterval:   s.Duration("SAVE_INTERVAL", time.Minute),
		AuditDB:        s.String("AUDIT_DB", ""),
		SeedFile:       s.String("SEED_FILE", ""),
		RotationSweep:  s.Duration("ROTATION_SWEEP", time.Hour),
		ShutdownGrace:  s.Duration("SHUTDOWN_GRACE", 10*time.Second),
		AdmissionRedis: s.Bool("ADMISSION_REDIS", false),
	}
	if err := out.LogLevel.UnmarshalText([]byte(s.String("LOG_LEVEL", "info"))); err != nil {
		return Server{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if out.LogFormat != "json" && out.LogFormat != "text" {
		return Server{}, fmt.Errorf("LOG_FORMAT must be json or text, got %q", out.LogFormat)
	}
	if out.AdmissionRedis && out.RedisAddr == "" {
		return Server{}, errors.New("ADMISSION_REDIS requires REDIS_ADDR")
	}
	return out, nil
}

// Engine overlays the environment onto goVerify.DefaultConfig and validates
// the result.
func (s *Settings) Engine() (goVerify.Config, error) {
	cfg := goVerify.DefaultConfig()

	cfg.Credential.LockoutThreshold = s.Int("LOCKOUT_THRESHOLD", cfg.Credential.LockoutThreshold)
	cfg.Credential.LockoutWindow = s.Duration("LOCKOUT_WINDOW", cfg.Credential.LockoutWindow)

	cfg.Password.Memory = uint32(s.Int("ARGON2_MEMORY_KIB", int(cfg.Password.Memory)))
	cfg.Password.Time = uint32(s.Int("ARGON2_TIME", int(cfg.Password.Time)))
	cfg.Password.Parallelism = uint8(s.Int("ARGON2_PARALLELISM", int(cfg.Password.Parallelism)))

	cfg.SecondFactor.CodeTTL = s.Duration("CODE_TTL", cfg.SecondFactor.CodeTTL)
	cfg.SecondFactor.DerivedSkew = s.Int("DERIVED_SKEW", cfg.SecondFactor.DerivedSkew)
	cfg.SecondFactor.Issuer = s.String("DERIVED_ISSUER", cfg.SecondFactor.Issuer)

	cfg.Risk.AcceptanceCeiling = s.Float("RISK_CEILING", cfg.Risk.AcceptanceCeiling)
	cfg.Risk.MinSamples = s.Int("RISK_MIN_SAMPLES", cfg.Risk.MinSamples)

	cfg.AccessLog.Capacity = s.Int("ACCESS_LOG_CAPACITY", cfg.AccessLog.Capacity)
	cfg.Audit.Enabled = s.Bool("AUDIT_ENABLED", s.String("AUDIT_DB", "") != "")
	cfg.Audit.DropIfFull = s.Bool("AUDIT_DROP_IF_FULL", cfg.Audit.DropIfFull)

	cfg.Admission.Enabled = s.Bool("ADMISSION_ENABLED", cfg.Admission.Enabled)
	cfg.Admission.PerSecond = s.Float("ADMISSION_RATE", cfg.Admission.PerSecond)
	cfg.Admission.Burst = s.Int("ADMISSION_BURST", cfg.Admission.Burst)

	cfg.Grant.Enabled = s.Bool("GRANT_ENABLED", cfg.Grant.Enabled)
	cfg.Grant.TTL = s.Duration("GRANT_TTL", cfg.Grant.TTL)
	cfg.Grant.Issuer = s.String("GRANT_ISSUER", cfg.Grant.Issuer)
	if cfg.Grant.Enabled {
		seedHex := s.String("GRANT_SEED", "")
		if seedHex == "" {
			return goVerify.Config{}, errors.New("GRANT_SEED is required when GRANT_ENABLED")
		}
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return goVerify.Config{}, fmt.Errorf("GRANT_SEED must be %d hex-encoded bytes", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		cfg.Grant.PrivateKey = priv
		cfg.Grant.PublicKey = priv.Public().(ed25519.PublicKey)
		cfg.Grant.SigningMethod = "ed25519"
	}

	if err := cfg.Validate(); err != nil {
		return goVerify.Config{}, err
	}
	return cfg, nil
}

// HTTP returns the transport settings.
func (s *Settings) HTTP() (httpapi.Config, error) {
	cfg := httpapi.DefaultConfig()
	cfg.ClientRate = s.Float("HTTP_CLIENT_RATE", cfg.ClientRate)
	cfg.ClientBurst = s.Int("HTTP_CLIENT_BURST", cfg.ClientBurst)
	cfg.TrustForwardedFor = s.Bool("HTTP_TRUST_FORWARDED_FOR", cfg.TrustForwardedFor)
	cfg.AdminIdentities = s.List("ADMINS")
	cfg.OpenEnrollment = s.Bool("OPEN_ENROLLMENT", false)
	if err := cfg.Validate(); err != nil {
		return httpapi.Config{}, err
	}
	return cfg, nil
}
