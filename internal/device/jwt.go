package device

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenDuration is deliberately long: the token is an anonymous device
// handle, not a user credential, and losing it only resets watch progress.
const TokenDuration = 180 * 24 * time.Hour

type Claims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, deviceID string) (string, error) {
	claims := &Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.DeviceID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
