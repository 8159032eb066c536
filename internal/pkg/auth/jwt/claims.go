package jwt

import "github.com/golang-jwt/jwt"

// Payload is the subset of the session credential claims the client reads.
// The server signs the token; the client never verifies the signature and only uses the
// claims to decide whether a stored credential is worth presenting at all.
type Payload struct {
	jwt.StandardClaims

	// ID is the authenticated user's identifier.
	ID int64 `json:"id"`

	// Nickname is the user's nickname at issue time.
	Nickname string `json:"nickname,omitempty"`
}
