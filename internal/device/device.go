// Package device issues and validates the anonymous per-device identity
// that keys watch progress. No account, no login: the first contact mints a
// random id wrapped in a signed token.
package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/carelib/carelib/internal/httputil"
)

type contextKey string

const deviceIDKey contextKey = "deviceID"

const cookieName = "device_token"

type Handler struct {
	jwtSecret     string
	secureCookies bool
}

func NewHandler(jwtSecret string, secureCookies bool) *Handler {
	return &Handler{jwtSecret: jwtSecret, secureCookies: secureCookies}
}

type tokenResponse struct {
	DeviceID    string `json:"deviceId"`
	DeviceToken string `json:"deviceToken"`
}

// Issue mints a fresh device identity. Returned in the body for callers
// that store it themselves and as a cookie for the mini-browser, which
// reliably keeps cookies but not always script storage.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	deviceID, err := newDeviceID()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create device id")
		return
	}
	token, err := GenerateToken(h.jwtSecret, deviceID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(TokenDuration / time.Second),
	})
	httputil.WriteJSON(w, http.StatusCreated, tokenResponse{DeviceID: deviceID, DeviceToken: token})
}

// Middleware resolves the device identity from a Bearer header or the
// device cookie and stores it on the request context.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			if t, found := strings.CutPrefix(authHeader, "Bearer "); found {
				tokenStr = t
			}
		}
		if tokenStr == "" {
			if cookie, err := r.Cookie(cookieName); err == nil {
				tokenStr = cookie.Value
			}
		}
		if tokenStr == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "device token required")
			return
		}

		claims, err := ValidateToken(h.jwtSecret, tokenStr)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid device token")
			return
		}

		ctx := context.WithValue(r.Context(), deviceIDKey, claims.DeviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func IDFromContext(ctx context.Context) string {
	deviceID, _ := ctx.Value(deviceIDKey).(string)
	return deviceID
}

func newDeviceID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
