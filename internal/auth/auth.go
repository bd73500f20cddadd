package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken covers missing, malformed, expired and badly-signed
// credentials. Callers treat all of them the same: reject the connection.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer credential into a stable user identity. The auth
// service issues the tokens; this backend only verifies them.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// JWTVerifier verifies HMAC-signed tokens carrying the user ID in the "id"
// claim, the shape the auth service signs at login.
type JWTVerifier struct {
	Secret []byte
}

func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
