package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carelib/carelib/internal/httputil"
)

func applySecurityHeaders(t *testing.T, cfg SecurityConfig) *httptest.ResponseRecorder {
	t.Helper()
	handler := securityHeaders(cfg)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	handler(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestSecurityHeaders_CSPContainsNonce(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	var capturedNonce string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedNonce = httputil.NonceFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	handler(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if capturedNonce == "" {
		t.Fatal("expected non-empty nonce in context")
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-"+capturedNonce+"'") {
		t.Errorf("CSP should contain nonce, got: %s", csp)
	}
}

func TestSecurityHeaders_CSPOmitsUnsafeInline(t *testing.T) {
	rec := applySecurityHeaders(t, SecurityConfig{BaseURL: "https://app.test"})

	csp := rec.Header().Get("Content-Security-Policy")
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_CSPAllowsDriveFrames(t *testing.T) {
	rec := applySecurityHeaders(t, SecurityConfig{BaseURL: "https://app.test"})

	// The inline clip player is an embedded Drive preview.
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-src https://drive.google.com") {
		t.Errorf("CSP frame-src should allow the Drive player, got: %s", csp)
	}
	if !strings.Contains(csp, "frame-ancestors 'self'") {
		t.Errorf("CSP should contain frame-ancestors 'self', got: %s", csp)
	}
}

func TestSecurityHeaders_UniqueNoncePerRequest(t *testing.T) {
	handler := securityHeaders(SecurityConfig{BaseURL: "https://app.test"})
	var nonces []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonces = append(nonces, httputil.NonceFromContext(r.Context()))
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if nonces[0] == nonces[1] || nonces[1] == nonces[2] {
		t.Errorf("expected unique nonces per request, got %v", nonces)
	}
}

func TestSecurityHeaders_PermissionsPolicyDeniesSensors(t *testing.T) {
	rec := applySecurityHeaders(t, SecurityConfig{BaseURL: "https://app.test"})

	pp := rec.Header().Get("Permissions-Policy")
	for _, denied := range []string{"camera=()", "microphone=()", "geolocation=()"} {
		if !strings.Contains(pp, denied) {
			t.Errorf("Permissions-Policy should contain %s, got: %s", denied, pp)
		}
	}
}

func TestSecurityHeaders_HSTSOnHTTPS(t *testing.T) {
	rec := applySecurityHeaders(t, SecurityConfig{BaseURL: "https://app.test"})
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header for HTTPS base URL")
	}
}

func TestSecurityHeaders_NoHSTSOnHTTP(t *testing.T) {
	rec := applySecurityHeaders(t, SecurityConfig{BaseURL: "http://localhost:8080"})
	if hsts := rec.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("expected no HSTS for HTTP base URL, got: %s", hsts)
	}
}
