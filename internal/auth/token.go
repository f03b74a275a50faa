// Package auth issues and checks the bearer tokens that guard the tracker's
// mutating API routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenType = "api"

// DefaultTTL is used when Issue is called with a zero ttl.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNoSecret is returned by NewTokenIssuer when the shared secret is empty.
var ErrNoSecret = errors.New("auth: empty signing secret")

// Claims are the JWT claims carried by an API token.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// TokenIssuer signs and verifies HS256 API tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer returns an issuer for the given secret and "iss" value.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if issuer == "" {
		issuer = "delivery-risk-tracker"
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

// Issue mints a token for subject valid for ttl.
func (t *TokenIssuer) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Type: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign api token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenStr and returns its claims if the signature, issuer and
// expiry all check out.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify api token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid api token claims")
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("not an api token")
	}
	return claims, nil
}
