package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"condosync/internal/permission"
)

// Claims are the token claims the external issuer signs for condo users.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator parses and verifies HS256 identity tokens.
type TokenValidator struct {
	signingKey []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate returns the identity encoded in tokenString. The subject claim is
// the user id.
func (v *TokenValidator) Validate(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token missing subject")
	}
	role := permission.Role(claims.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return Identity{ID: claims.Subject, Role: role}, nil
}
