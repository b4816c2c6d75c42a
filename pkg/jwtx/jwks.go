package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
)

// JWK is a minimal JSON Web Key for publishing Ed25519 verification
// keys. Symmetric deployments publish an empty set.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicKeyer is implemented by codecs whose verification key is safe
// to publish.
type PublicKeyer interface {
	PublicJWK() JWK
}

// CollectJWKS builds a JWKS from the codecs that expose a public key.
func CollectJWKS(codecs ...Codec) JWKS {
	set := JWKS{Keys: []JWK{}}
	for _, c := range codecs {
		if pk, ok := c.(PublicKeyer); ok {
			set.Keys = append(set.Keys, pk.PublicJWK())
		}
	}
	return set
}

func newEd25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: kid,
		Use: "sig",
		Alg: "EdDSA",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}
