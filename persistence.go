package goVerify

import (
	"context"
	"fmt"
	"sort"

	"github.com/MrEthical07/goVerify/biometric"
	"github.com/MrEthical07/goVerify/credential"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/otp"
	"github.com/MrEthical07/goVerify/risk"
)

// IdentityState is the persisted form of everything the built-in stages hold
// for one identity. Absent sections are nil.
type IdentityState struct {
	Identity     string             `json:"identity"`
	Credential   *credential.Record `json:"credential,omitempty"`
	SecondFactor *otp.Record        `json:"second_factor,omitempty"`
	Biometric    *biometric.Record  `json:"biometric,omitempty"`
	KeyLayers    *keylayer.Record   `json:"key_layers,omitempty"`
	Risk         *risk.Record       `json:"risk,omitempty"`
}

// Persister stores and loads identity states.
type Persister interface {
	SaveStates(ctx context.Context, states []IdentityState) error
	LoadStates(ctx context.Context) ([]IdentityState, error)
}

// Snapshot collects the state of every identity known to the built-in
// stages, ordered by identity. Each stage is copied consistently; stages are
// not copied atomically with respect to each other.
func (e *Engine) Snapshot() []IdentityState {
	byID := make(map[string]*IdentityState)
	get := func(id string) *IdentityState {
		st, ok := byID[id]
		if !ok {
			st = &IdentityState{Identity: id}
			byID[id] = st
		}
		return st
	}

	if e.credentialStore != nil {
		for _, r := range e.credentialStore.Export() {
			get(r.Identity).Credential = &r
		}
	}
	if e.codeIssuer != nil {
		for _, r := range e.codeIssuer.Export() {
			get(r.Identity).SecondFactor = &r
		}
	}
	if e.templateStore != nil {
		for _, r := range e.templateStore.Export() {
			get(r.Identity).Biometric = &r
		}
	}
	if e.layerCodec != nil {
		for _, r := range e.layerCodec.Export() {
			get(r.Identity).KeyLayers = &r
		}
	}
	if e.riskEngine != nil {
		for _, r := range e.riskEngine.Export() {
			get(r.Identity).Risk = &r
		}
	}

	out := make([]IdentityState, 0, len(byID))
	for _, st := range byID {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Save writes [Engine.Snapshot] to p.
func (e *Engine) Save(ctx context.Context, p Persister) error {
	states := e.Snapshot()
	if err := p.SaveStates(ctx, states); err != nil {
		e.logger.Warn("state save failed", "identities", len(states), "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	e.logger.Info("state saved", "identities", len(states))
	return nil
}

// Restore loads states from p and installs them verbatim into the built-in
// stages, replacing existing state for the same identities.
func (e *Engine) Restore(ctx context.Context, p Persister) error {
	states, err := p.LoadStates(ctx)
	if err != nil {
		e.logger.Warn("state load failed", "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := e.Import(states); err != nil {
		return err
	}
	e.logger.Info("state restored", "identities", len(states))
	e.emitAudit(ctx, auditEventStateRestored, true, "", "", StageNone, "", func() map[string]string {
		return map[string]string{"identities": fmt.Sprint(len(states))}
	})
	return nil
}

// Import installs states into the built-in stages. Sections for a replaced
// stage are ignored. Every section is validated before any is installed, so a
// rejected import leaves the engine unchanged. Import takes no identity locks
// and is meant for start-up, before attempts are served.
func (e *Engine) Import(states []IdentityState) error {
	var (
		creds  []credential.Record
		codes  []otp.Record
		bios   []biometric.Record
		layers []keylayer.Record
		risks  []risk.Record
	)
	for _, st := range states {
		if st.Identity == "" {
			return ErrEmptyIdentity
		}
		if st.Credential != nil {
			creds = append(creds, fillIdentity(*st.Credential, st.Identity, func(r *credential.Record) *string { return &r.Identity }))
		}
		if st.SecondFactor != nil {
			codes = append(codes, fillIdentity(*st.SecondFactor, st.Identity, func(r *otp.Record) *string { return &r.Identity }))
		}
		if st.Biometric != nil {
			bios = append(bios, fillIdentity(*st.Biometric, st.Identity, func(r *biometric.Record) *string { return &r.Identity }))
		}
		if st.KeyLayers != nil {
			layers = append(layers, fillIdentity(*st.KeyLayers, st.Identity, func(r *keylayer.Record) *string { return &r.Identity }))
		}
		if st.Risk != nil {
			risks = append(risks, fillIdentity(*st.Risk, st.Identity, func(r *risk.Record) *string { return &r.Identity }))
		}
	}

	if err := validateSections(creds, codes, bios, layers, risks); err != nil {
		return err
	}

	if e.credentialStore != nil {
		if err := e.credentialStore.Import(creds); err != nil {
			return fmt.Errorf("import credentials: %w", err)
		}
	}
	if e.codeIssuer != nil {
		if err := e.codeIssuer.Import(codes); err != nil {
			return fmt.Errorf("import second factor: %w", err)
		}
	}
	if e.templateStore != nil {
		if err := e.templateStore.Import(bios); err != nil {
			return fmt.Errorf("import biometric templates: %w", err)
		}
	}
	if e.layerCodec != nil {
		if err := e.layerCodec.Import(layers); err != nil {
			return fmt.Errorf("import key layers: %w", err)
		}
	}
	if e.riskEngine != nil {
		if err := e.riskEngine.Import(risks); err != nil {
			return fmt.Errorf("import risk profiles: %w", err)
		}
	}
	return nil
}

func validateSections(creds []credential.Record, codes []otp.Record, bios []biometric.Record, layers []keylayer.Record, risks []risk.Record) error {
	if err := credential.ValidateRecords(creds); err != nil {
		return fmt.Errorf("import credentials: %w", err)
	}
	if err := otp.ValidateRecords(codes); err != nil {
		return fmt.Errorf("import second factor: %w", err)
	}
	if err := biometric.ValidateRecords(bios); err != nil {
		return fmt.Errorf("import biometric templates: %w", err)
	}
	if err := keylayer.ValidateRecords(layers); err != nil {
		return fmt.Errorf("import key layers: %w", err)
	}
	if err := risk.ValidateRecords(risks); err != nil {
		return fmt.Errorf("import risk profiles: %w", err)
	}
	return nil
}

// fillIdentity fills an empty section identity from its enclosing state.
func fillIdentity[T any](r T, identity string, field func(*T) *string) T {
	if p := field(&r); *p == "" {
		*p = identity
	}
	return r
}
