package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewAccessToken issues a signed HS256 JWT for a staff user.  The subject
// claim carries the user ID and the role claim drives route authorization.
// Staff sessions are short lived; there is no refresh flow, operators simply
// log in again when the token expires.
func NewAccessToken(secret string, userID uint64, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
