package agoraws

import (
	"context"
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Identity is the result of verifying a bearer credential.
type Identity struct {
	UserID string
	Role   string
}

// IdentityVerifier turns a bearer credential into a user identity. The
// credential is optional on $connect; verification failure downgrades the
// connection to anonymous rather than refusing it.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HMACVerifier verifies HS256-family JWTs signed with a shared secret.
type HMACVerifier struct {
	Secret []byte
}

func (v HMACVerifier) Verify(_ context.Context, token string) (Identity, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("verifying bearer token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, errors.New("invalid bearer token")
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, errors.New("claims type mismatch")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, errors.New("bearer token missing subject")
	}
	role, _ := claims["role"].(string)

	return Identity{UserID: sub, Role: role}, nil
}
