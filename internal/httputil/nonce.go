package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
)

type contextKey string

const nonceKey contextKey = "csp-nonce"

// nonceBytes is the entropy behind each per-request CSP nonce; 16 random
// bytes encode to a 22-character token.
const nonceBytes = 16

// GenerateNonce returns a fresh CSP nonce, or an empty string if the
// system's entropy source fails. Callers emit the header without a nonce
// in that case rather than reusing one.
func GenerateNonce() string {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("csp nonce generation failed", "error", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ContextWithNonce stores the request's CSP nonce for page renderers.
func ContextWithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey, nonce)
}

// NonceFromContext returns the request's CSP nonce, or an empty string
// when none was attached.
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey).(string)
	return nonce
}
