package goVerify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine uses it for
// admission limiting, audit events and the client fingerprint scored by the
// risk gate.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the caller's User-Agent string to ctx. It feeds the
// client fingerprint scored by the risk gate.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// clientFingerprint hashes the client IP and User-Agent. It is empty when
// neither is known, which the default scorer treats as no signal.
func clientFingerprint(ctx context.Context) string {
	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)
	if ip == "" && ua == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip + "\x00" + ua))
	return hex.EncodeToString(sum[:16])
}
