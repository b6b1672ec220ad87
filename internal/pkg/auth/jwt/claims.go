package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a development-server credential.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the numeric user id.
	ID int64 `json:"id"`

	Email string `json:"email"`

	// Role is the role at issue time. Handlers re-read the user record, so a role change
	// takes effect without a new token.
	Role string `json:"role"`
}
