package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateJWTHS256(t *testing.T) {
	token := signHS256(t, "secret", Claims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "student-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestValidateJWTRejects(t *testing.T) {
	expired := signHS256(t, "secret", Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "student-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	valid := signHS256(t, "secret", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "student-1"}})

	tests := []struct {
		name  string
		token string
		key   string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"garbage", "not-a-token", "secret"},
		{"empty", "", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, tt.key)
			assert.Error(t, err)
		})
	}
}

func TestKeyFuncForUnsupported(t *testing.T) {
	_, err := keyFuncFor("none", "secret")
	assert.ErrorContains(t, err, "unsupported signing algorithm")

	_, err = keyFuncFor("RS256", "not pem")
	assert.ErrorContains(t, err, "failed to decode PEM block")
}
