// Package auth verifies bearer tokens issued by the account subsystem.
package auth

import (
	"errors"
	"fmt"
	"strings"

	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims accepts the three id claim names issued over time.
type AccessClaims struct {
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// subject returns the first non-empty of userId, id, sub.
func (c AccessClaims) subject() string {
	for _, v := range []string{c.UserID, c.ID, c.Subject} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// JWTVerifier checks HS256 signatures and expiry.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

func (v *JWTVerifier) ResolveCaller(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, fmt.Errorf("%w: missing token", cardcircle_errors.ErrUnauthorized)
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, cardcircle_errors.ErrUnauthorized
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid token", cardcircle_errors.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", cardcircle_errors.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.subject())
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: token carries no user id", cardcircle_errors.ErrUnauthorized)
	}
	return userID, nil
}

// Sign issues a token for userID. Used by tests and local tooling; the
// account subsystem issues production tokens.
func (v *JWTVerifier) Sign(userID uuid.UUID, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{RegisteredClaims: claims})
	return token.SignedString(v.secret)
}
