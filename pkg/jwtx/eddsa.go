package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSACodec signs and verifies tokens with an Ed25519 keypair. Use it
// when downstream services should verify tokens locally: the public
// key is published through the JWKS endpoint.
type EdDSACodec struct {
	kid    string
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// NewEdDSA loads a PKCS8 PEM-encoded Ed25519 private key.
func NewEdDSA(kid string, pemKey []byte, issuer string) (*EdDSACodec, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY block, got %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &EdDSACodec{
		kid:    kid,
		key:    key,
		pub:    key.Public().(ed25519.PublicKey),
		issuer: issuer,
	}, nil
}

// GenerateEdDSAPEM produces a fresh PKCS8 PEM-encoded Ed25519 private
// key. Used for ephemeral key mode and in tests.
func GenerateEdDSAPEM() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func (c *EdDSACodec) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (c *EdDSACodec) KID() string { return c.kid }

func (c *EdDSACodec) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = c.kid
	return t.SignedString(c.key)
}

func (c *EdDSACodec) Verify(raw string) (Claims, error) {
	return verifyWithKeyfunc(raw, c.issuer, c.Alg(), func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != c.kid {
			return nil, errors.New("jwtx: unknown kid")
		}
		return c.pub, nil
	})
}

// PublicJWK returns the verification key in JWK form for the JWKS
// endpoint.
func (c *EdDSACodec) PublicJWK() JWK {
	return newEd25519JWK(c.kid, c.pub)
}
