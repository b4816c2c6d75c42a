package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Codec signs and verifies tokens with a shared HMAC-SHA256
// secret. This is the default deployment mode: the gateway is the only
// issuer and the only first-party verifier, and downstream services
// validate remotely through the validate endpoint rather than holding
// the secret themselves.
type HS256Codec struct {
	secret []byte
	issuer string
}

// MinHS256SecretLen rejects secrets shorter than the HMAC-SHA256
// output size; anything shorter weakens the whole token scheme.
const MinHS256SecretLen = 32

// NewHS256 builds a codec from a shared secret.
func NewHS256(secret []byte, issuer string) (*HS256Codec, error) {
	if len(secret) < MinHS256SecretLen {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Codec{secret: secret, issuer: issuer}, nil
}

func (c *HS256Codec) Alg() string { return jwt.SigningMethodHS256.Alg() }

func (c *HS256Codec) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *HS256Codec) Verify(raw string) (Claims, error) {
	return verifyWithKeyfunc(raw, c.issuer, c.Alg(), func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
}
