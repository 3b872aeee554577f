package middleware

import (
	"net/http"

	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/risk"
)

// RequireGrant admits any valid grant when identities is empty, otherwise
// only grants issued to one of identities.
func RequireGrant(parser GrantParser, identities ...string) func(http.Handler) http.Handler {
	if len(identities) == 0 {
		return Guard(parser, nil)
	}
	allowed := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		allowed[id] = struct{}{}
	}
	return Guard(parser, func(c *jwt.GrantClaims) bool {
		_, ok := allowed[c.Identity()]
		return ok
	})
}

// RequireNormalResponse admits grants whose attempt ended with no adaptive
// escalation.
func RequireNormalResponse(parser GrantParser) func(http.Handler) http.Handler {
	return Guard(parser, func(c *jwt.GrantClaims) bool {
		return c.Level == string(risk.Normal)
	})
}
