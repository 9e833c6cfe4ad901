package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims mirrors the claims the gateway puts into access and refresh tokens.
type tokenClaims struct {
	UserID   string `json:"uid,omitempty"`
	Username string `json:"usn,omitempty"`
	jwt.RegisteredClaims
}

var claimsParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// parseClaims decodes token claims without signature verification.
// ok is false for tokens that are not JWTs.
func parseClaims(token string) (tokenClaims, bool) {
	var c tokenClaims
	if token == "" {
		return c, false
	}
	if _, _, err := claimsParser.ParseUnverified(token, &c); err != nil {
		return tokenClaims{}, false
	}
	return c, true
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.UTC()
}
