// Package jwtx signs and verifies the gateway's JWTs. Access and
// refresh tokens share one claim shape; the kind claim tells them
// apart and the fam claim links every token to its refresh family so
// revocation can cascade.
package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the claims embedded in every gateway token. Additive
// changes only, so downstream verifiers stay compatible.
type Claims struct {
	jwt.RegisteredClaims

	// Kind is "access" or "refresh".
	Kind Kind `json:"kind"`

	// Family is the refresh-family identifier. On an initial login it
	// equals the refresh token's jti; rotations inherit it. Access
	// tokens carry it so a logout can invalidate them mid-lifetime.
	Family string `json:"fam"`

	// Sequence is the rotation counter within a family. Starts at 1 on
	// login and increments on every rotation. Zero on access tokens.
	Sequence int64 `json:"seq,omitempty"`

	// Username of the authenticated identity, for downstream display.
	Username string `json:"username,omitempty"`
}

// NewClaims builds claims for one token of the given kind.
func NewClaims(
	kind Kind,
	jti, subject, family, username string,
	sequence int64,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Kind:     kind,
		Family:   family,
		Sequence: sequence,
		Username: username,
	}
}
