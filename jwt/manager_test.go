package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newEdManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.TTL == 0 {
		cfg.TTL = time.Minute
	}
	cfg.SigningMethod = MethodEd25519
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseGrant(t *testing.T) {
	pub, priv := newEdKeys(t)
	m := newEdManager(t, Config{PrivateKey: priv, PublicKey: pub, Issuer: "goverify"})

	token, err := m.CreateGrant(Grant{Identity: "alice", AttemptID: "a-1", Stages: 5, Score: 0.97, Level: "NORMAL"})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	claims, err := m.ParseGrant(token)
	if err != nil {
		t.Fatalf("parse grant: %v", err)
	}
	if claims.Identity() != "alice" || claims.AttemptID() != "a-1" {
		t.Fatalf("unexpected subject/id: %q %q", claims.Identity(), claims.AttemptID())
	}
	if claims.Stages != 5 || claims.Score != 0.97 || claims.Level != "NORMAL" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCreateGrantRequiresIdentity(t *testing.T) {
	pub, priv := newEdKeys(t)
	m := newEdManager(t, Config{PrivateKey: priv, PublicKey: pub})

	if _, err := m.CreateGrant(Grant{AttemptID: "a-1"}); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
}

func TestParseGrantRejectsMissingSubject(t *testing.T) {
	pub, priv := newEdKeys(t)
	m := newEdManager(t, Config{PrivateKey: priv, PublicKey: pub})

	claims := GrantClaims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if _, err := m.ParseGrant(token); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
}

func TestParseGrantRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m := newEdManager(t, Config{PublicKey: pub})

	claims := GrantClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseGrant(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseGrantIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m := newEdManager(t, Config{
		PrivateKey: priv,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		Issuer:     "goverify",
		Audience:   "admin",
		Leeway:     30 * time.Second,
	})

	sign := func(issuer, audience string, exp, iat time.Duration) string {
		claims := GrantClaims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(iat)),
		}}
		s, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		return s
	}

	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"valid", sign("goverify", "admin", time.Minute, 0), true},
		{"wrong issuer", sign("other", "admin", time.Minute, 0), false},
		{"wrong audience", sign("goverify", "other", time.Minute, 0), false},
		{"expired within leeway", sign("goverify", "admin", -15*time.Second, -time.Minute), true},
		{"expired", sign("goverify", "admin", -2*time.Minute, -3*time.Minute), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.ParseGrant(tc.token)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected failure")
			}
		})
	}
}

func TestParseGrantUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m := newEdManager(t, Config{
		PrivateKey: priv1,
		PublicKey:  pub1,
		KeyID:      "k1",
		VerifyKeys: map[string][]byte{"k1": pub1},
	})

	claims := GrantClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	bad, _ := tok.SignedString(priv1)
	if _, err := m.ParseGrant(bad); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.CreateGrant(Grant{Identity: "alice", AttemptID: "a"})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if _, err := m.ParseGrant(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2 := newEdManager(t, Config{PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.ParseGrant(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestHS256Grant(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.CreateGrant(Grant{Identity: "bob", AttemptID: "x"})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if _, err := m.ParseGrant(token); err != nil {
		t.Fatalf("parse grant: %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodEd25519, PublicKey: pub}},
		{"huge leeway", Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour}},
		{"short hs256 secret", Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")}},
		{"no ed25519 keys", Config{TTL: time.Minute, SigningMethod: MethodEd25519}},
		{"unknown method", Config{TTL: time.Minute, SigningMethod: "rs256", PublicKey: pub}},
		{"kid not in set", Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
