package http

import (
	"encoding/json"
	"net/http"

	"github.com/openagri/gatekeeper/pkg/jwtx"
)

// JWKSHandler serves GET /.well-known/jwks.json. Under EdDSA signing
// the set carries the verification key so downstream services can
// verify locally; under HS256 it is empty and they must use the
// validate endpoint.
func JWKSHandler(codecs ...jwtx.Codec) http.HandlerFunc {
	set := jwtx.CollectJWKS(codecs...)
	return func(w http.ResponseWriter, r *http.Request) {
		// Key material changes only on restart; unlike token responses
		// this document is safe to cache.
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(set)
	}
}
