// Package auth mints and verifies the admin bearer tokens that guard
// destructive file operations.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ibcol/portal/internal/common"
)

// RoleAdmin is the only role allowed to delete stored files.
const RoleAdmin = "admin"

// Claims are the registered claims plus the caller's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func GenerateToken(subject, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Role: role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature and expiry. Expired tokens yield
// common.ErrTokenExpired, anything else common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// AuthorizeAdmin checks an Authorization header value and returns the
// token subject. Every failure matches common.ErrUnauthorized.
func AuthorizeAdmin(header string, secretKey []byte) (string, error) {
	tokenString, ok := BearerToken(header)
	if !ok {
		return "", common.ErrUnauthorized
	}

	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", errors.Join(common.ErrUnauthorized, err)
	}
	if claims.Role != RoleAdmin {
		return "", common.ErrUnauthorized
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from "Bearer <token>".
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
