package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/risk"
)

func newTestManager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		TTL:           time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func grantFor(t *testing.T, m *jwt.Manager, identity string, level risk.ResponseLevel) string {
	t.Helper()
	token, err := m.CreateGrant(jwt.Grant{
		Identity:  identity,
		AttemptID: "attempt-1",
		Stages:    5,
		Score:     1,
		Level:     string(level),
	})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	return token
}

func serve(h func(http.Handler) http.Handler, authorization string) (int, string) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := GrantFromContext(r.Context()); ok {
			seen = c.Identity()
		}
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/report", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h(next).ServeHTTP(rec, req)
	return rec.Code, seen
}

func TestRequireGrant(t *testing.T) {
	m := newTestManager(t)
	admin := grantFor(t, m, "admin", risk.Normal)
	user := grantFor(t, m, "user", risk.Normal)

	tests := []struct {
		name   string
		guard  func(http.Handler) http.Handler
		header string
		code   int
		seen   string
	}{
		{"missing header", RequireGrant(m), "", http.StatusUnauthorized, ""},
		{"not bearer", RequireGrant(m), "Basic " + admin, http.StatusUnauthorized, ""},
		{"empty bearer", RequireGrant(m), "Bearer ", http.StatusUnauthorized, ""},
		{"tampered", RequireGrant(m), "Bearer " + admin + "x", http.StatusUnauthorized, ""},
		{"any grant", RequireGrant(m), "Bearer " + user, http.StatusNoContent, "user"},
		{"admin set allows", RequireGrant(m, "admin", "ops"), "Bearer " + admin, http.StatusNoContent, "admin"},
		{"admin set refuses", RequireGrant(m, "admin", "ops"), "Bearer " + user, http.StatusForbidden, ""},
		{"nil parser", RequireGrant(nil), "Bearer " + admin, http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, seen := serve(tc.guard, tc.header)
			if code != tc.code || seen != tc.seen {
				t.Fatalf("got %d/%q, want %d/%q", code, seen, tc.code, tc.seen)
			}
		})
	}
}

func TestRequireNormalResponse(t *testing.T) {
	m := newTestManager(t)
	if code, _ := serve(RequireNormalResponse(m), "Bearer "+grantFor(t, m, "admin", risk.Normal)); code != http.StatusNoContent {
		t.Fatalf("normal grant refused: %d", code)
	}
	if code, _ := serve(RequireNormalResponse(m), "Bearer "+grantFor(t, m, "admin", risk.MonitoringElevated)); code != http.StatusForbidden {
		t.Fatalf("elevated grant admitted: %d", code)
	}
}
