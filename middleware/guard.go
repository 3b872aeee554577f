package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goVerify/jwt"
)

// GrantParser verifies grant tokens. *goVerify.Engine and *jwt.Manager both
// satisfy it.
type GrantParser interface {
	ParseGrant(token string) (*jwt.GrantClaims, error)
}

type grantContextKey struct{}

// GrantFromContext returns the claims injected by a guard.
func GrantFromContext(ctx context.Context) (*jwt.GrantClaims, bool) {
	claims, ok := ctx.Value(grantContextKey{}).(*jwt.GrantClaims)
	return claims, ok
}

// Guard admits requests whose bearer grant verifies and satisfies allow. A
// nil allow admits every valid grant. Missing or invalid grants get 401; a
// valid grant refused by allow gets 403.
func Guard(parser GrantParser, allow func(*jwt.GrantClaims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseGrant(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if allow != nil && !allow(claims) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), grantContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
