package insurai

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the JWT payload of an identity token. The token is
// stateless: subject, role and expiry are all it carries.
type IdentityClaims struct {
	jwt.RegisteredClaims
	UserRole string `json:"role"`
}

// Identity is the caller resolved from a verified token.
type Identity struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.Subject == "" && i.Role == ""
}

// IdentityToken describes an issued credential.
type IdentityToken struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity returns the caller described by the token.
func (t IdentityToken) Identity() Identity {
	return Identity{Subject: t.Subject, Role: t.Role}
}
