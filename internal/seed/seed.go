// Package seed loads identity enrollments from a TOML file and applies them
// to an engine at startup.
//
//	[[identity]]
//	name           = "admin"
//	secret         = "correct horse battery"   # or digest = "$argon2id$..."
//	derived_secret = "JBSWY3DPEHPK3PXP"
//	active_hours   = [8, 9, 10, 11]
//	key_layers     = true
//	backup_codes   = true
//
//	[identity.templates]
//	fingerprint = [0.12, 0.48, 0.33]
package seed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/biometric"
)

// ErrInvalidSeed is returned for a seed file that parses but cannot apply.
var ErrInvalidSeed = errors.New("invalid enrollment seed")

// File is a decoded seed document.
type File struct {
	Identities []Identity `toml:"identity"`
}

// Identity is one seeded enrollment.
type Identity struct {
	Name          string               `toml:"name"`
	Secret        string               `toml:"secret"`
	Digest        string               `toml:"digest"`
	DerivedSecret string               `toml:"derived_secret"`
	Templates     map[string][]float64 `toml:"templates"`
	ActiveHours   []int                `toml:"active_hours"`
	KeyLayers     bool                 `toml:"key_layers"`
	BackupCodes   bool                 `toml:"backup_codes"`
}

// Result lists what applying a seed produced.
type Result struct {
	Enrolled    []string
	BackupCodes map[string][]string
}

// Load reads and validates a seed file.
func Load(path string) (File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return File{}, fmt.Errorf("%w: unknown key %s", ErrInvalidSeed, undecoded[0])
	}
	return f, f.Validate()
}

// Parse decodes a seed document held in memory.
func Parse(data string) (File, error) {
	var f File
	if _, err := toml.Decode(data, &f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, f.Validate()
}

// Validate checks identities before anything touches an engine.
func (f File) Validate() error {
	seen := make(map[string]struct{}, len(f.Identities))
	for i, id := range f.Identities {
		name := strings.TrimSpace(id.Name)
		if name == "" {
			return fmt.Errorf("%w: identity %d has no name", ErrInvalidSeed, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: identity %q listed twice", ErrInvalidSeed, name)
		}
		seen[name] = struct{}{}
		if id.Secret != "" && id.Digest != "" {
			return fmt.Errorf("%w: identity %q sets both secret and digest", ErrInvalidSeed, name)
		}
		for m := range id.Templates {
			if !biometric.Modality(m).Valid() {
				return fmt.Errorf("%w: identity %q: unknown modality %q", ErrInvalidSeed, name, m)
			}
		}
	}
	return nil
}

// Apply enrolls every identity in f. It stops at the first failure; earlier
// identities stay enrolled.
func Apply(ctx context.Context, e *goVerify.Engine, f File) (Result, error) {
	res := Result{BackupCodes: make(map[string][]string)}
	for _, id := range f.Identities {
		if err := applyOne(ctx, e, id, &res); err != nil {
			return res, fmt.Errorf("seed identity %q: %w", id.Name, err)
		}
		res.Enrolled = append(res.Enrolled, id.Name)
	}
	return res, nil
}

func applyOne(ctx context.Context, e *goVerify.Engine, id Identity, res *Result) error {
	switch {
	case id.Digest != "":
		if err := e.RegisterCredentialDigest(ctx, id.Name, id.Digest); err != nil {
			return err
		}
	case id.Secret != "":
		if err := e.RegisterCredential(ctx, id.Name, id.Secret); err != nil {
			return err
		}
	}

	if id.DerivedSecret != "" {
		if err := e.RegisterDerivedSecret(ctx, id.Name, id.DerivedSecret); err != nil {
			return err
		}
	}

	modalities := make([]string, 0, len(id.Templates))
	for m := range id.Templates {
		modalities = append(modalities, m)
	}
	slices.Sort(modalities)
	for _, m := range modalities {
		if err := e.EnrollTemplate(ctx, id.Name, biometric.Modality(m), id.Templates[m]); err != nil {
			return err
		}
	}
	if len(id.ActiveHours) > 0 {
		if err := e.EnrollActiveHours(ctx, id.Name, id.ActiveHours); err != nil {
			return err
		}
	}

	if id.KeyLayers {
		if _, err := e.ProvisionKeyLayers(ctx, id.Name); err != nil {
			return err
		}
	}
	if id.BackupCodes {
		codes, err := e.GenerateBackupCodes(ctx, id.Name)
		if err != nil {
			return err
		}
		res.BackupCodes[id.Name] = codes
	}
	return nil
}
