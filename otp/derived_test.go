package otp

import (
	"testing"
	"time"
)

func TestDerivedMatchRFC6238Vectors(t *testing.T) {
	suites := []struct {
		algorithm string
		secret    string
		vectors   map[int64]string
	}{
		{
			algorithm: "SHA1",
			secret:    "12345678901234567890",
			vectors: map[int64]string{
				59: "94287082", 1111111109: "07081804", 1111111111: "14050471",
				1234567890: "89005924", 2000000000: "69279037", 20000000000: "65353130",
			},
		},
		{
			algorithm: "SHA256",
			secret:    "12345678901234567890123456789012",
			vectors: map[int64]string{
				59: "46119246", 1111111109: "68084774", 1111111111: "67062674",
				1234567890: "91819424", 2000000000: "90698825", 20000000000: "77737706",
			},
		},
		{
			algorithm: "SHA512",
			secret:    "1234567890123456789012345678901234567890123456789012345678901234",
			vectors: map[int64]string{
				59: "90693936", 1111111109: "25091201", 1111111111: "99943326",
				1234567890: "93441116", 2000000000: "38618901", 20000000000: "47863826",
			},
		},
	}

	for _, suite := range suites {
		cfg := DefaultConfig()
		cfg.DerivedDigits = 8
		cfg.Algorithm = suite.algorithm
		for ts, code := range suite.vectors {
			ok, err := derivedMatch([]byte(suite.secret), code, time.Unix(ts, 0), cfg)
			if err != nil || !ok {
				t.Fatalf("%s vector failed at t=%d, ok=%v err=%v", suite.algorithm, ts, ok, err)
			}
		}
	}
}

func TestDerivedMatchSkew(t *testing.T) {
	secret := []byte("12345678901234567890")
	cfg := DefaultConfig()
	cfg.DerivedDigits = 8

	// 94287082 belongs to the step covering t=59; t=89 is the next step.
	if ok, _ := derivedMatch(secret, "94287082", time.Unix(89, 0), cfg); ok {
		t.Fatal("expected adjacent-step code to fail with zero skew")
	}
	cfg.Skew = 1
	if ok, _ := derivedMatch(secret, "94287082", time.Unix(89, 0), cfg); !ok {
		t.Fatal("expected adjacent-step code to pass with skew 1")
	}
}

func TestDerivedMatchRejectsMalformedCandidates(t *testing.T) {
	secret := []byte("12345678901234567890")
	cfg := DefaultConfig()

	for _, candidate := range []string{"", "12345", "1234567", "12a456"} {
		ok, err := derivedMatch(secret, candidate, time.Unix(59, 0), cfg)
		if err != nil || ok {
			t.Fatalf("candidate %q: expected plain rejection, ok=%v err=%v", candidate, ok, err)
		}
	}

	cfg.Algorithm = "MD5"
	if _, err := derivedMatch(secret, "123456", time.Unix(59, 0), cfg); err == nil {
		t.Fatal("expected unsupported algorithm to error")
	}
}
