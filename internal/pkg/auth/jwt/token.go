package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// ExpiryLeeway is subtracted from the expiry so a token about to lapse is treated as gone.
	ExpiryLeeway = 30 * time.Second

	// TokenIssuer identifies tokens minted by GenerateToken.
	TokenIssuer = "chatline"
)

// ErrMalformedToken is returned when a credential cannot be decoded as a JWT.
var ErrMalformedToken = errors.New("malformed session token")

// Inspect decodes the claims of tokenString without verifying its signature.
func Inspect(tokenString string) (*Payload, error) {
	claims := &Payload{}

	parser := &jwt.Parser{SkipClaimsValidation: true}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// Expired reports whether the payload's expiry (minus ExpiryLeeway) is before now.
// Tokens without an expiry never expire.
func Expired(p *Payload, now time.Time) bool {
	if p.ExpiresAt == 0 {
		return false
	}
	return now.Add(ExpiryLeeway).Unix() >= p.ExpiresAt
}

// GenerateToken creates and signs a new JWT Token string based on the provided Payload struct.
// A non-positive duration produces a token that is already expired.
//
// The client never signs credentials; GenerateToken exists to mint fixtures for tests of
// packages that inspect tokens.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}
