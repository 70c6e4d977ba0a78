package agoraws

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/tj/assert"
)

func signToken(t *testing.T, secret []byte, claims jwtlib.MapClaims) string {
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	assert.NoError(t, err)
	return token
}

func TestHMACVerifier(t *testing.T) {
	secret := []byte("super-secret")
	verifier := HMACVerifier{Secret: secret}
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, secret, jwtlib.MapClaims{
			"sub":  "user-1",
			"role": "moderator",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		identity, err := verifier.Verify(ctx, token)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, "moderator", identity.Role)
	})

	t.Run("role optional", func(t *testing.T) {
		token := signToken(t, secret, jwtlib.MapClaims{"sub": "user-2"})
		identity, err := verifier.Verify(ctx, token)
		assert.NoError(t, err)
		assert.Equal(t, "user-2", identity.UserID)
		assert.Equal(t, "", identity.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, []byte("other-secret"), jwtlib.MapClaims{"sub": "user-1"})
		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, secret, jwtlib.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, secret, jwtlib.MapClaims{"role": "moderator"})
		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("not a token", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "not-a-token")
		assert.Error(t, err)
	})
}
