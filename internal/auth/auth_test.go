package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := &JWTVerifier{Secret: []byte("test-secret")}
	token := signToken(t, []byte("test-secret"), jwt.MapClaims{"id": "u1"})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestVerifyRejectsBadCredentials(t *testing.T) {
	v := &JWTVerifier{Secret: []byte("test-secret")}

	cases := map[string]string{
		"empty token":  "",
		"garbage":      "not-a-jwt",
		"wrong secret": signToken(t, []byte("other-secret"), jwt.MapClaims{"id": "u1"}),
		"missing id":   signToken(t, []byte("test-secret"), jwt.MapClaims{"sub": "u1"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
