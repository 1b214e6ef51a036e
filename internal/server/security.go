package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/carelib/carelib/internal/httputil"
)

type SecurityConfig struct {
	BaseURL string
}

// driveHost hosts the embedded clip players, so it must be allowed as a
// frame source.
const driveHost = "https://drive.google.com"

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'; frame-src %s; frame-ancestors 'self';",
				nonce, nonce, driveHost,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
