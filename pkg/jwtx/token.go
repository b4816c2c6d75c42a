package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed covers anything that fails to parse or carries a bad
	// signature. Deliberately coarse: callers must not be able to tell
	// a forged signature from garbage input.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrExpired reports a structurally valid token past its exp claim
	// (or before nbf).
	ErrExpired = errors.New("jwtx: token expired")

	// ErrIssuer reports an issuer claim mismatch.
	ErrIssuer = errors.New("jwtx: issuer mismatch")
)

// Signer mints signed token strings from claims.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// Verifier checks a raw token's signature and time claims and returns
// the parsed claims. Revocation is outside its scope; the token
// service layers that on top.
type Verifier interface {
	Verify(raw string) (Claims, error)
}

// Codec is a matched signer/verifier pair sharing one key.
type Codec interface {
	Signer
	Verifier
}

// Leeway tolerated when validating exp/nbf, because clock sync across
// the gateway and its callers is never perfect.
const Leeway = 30 * time.Second

// verifyWithKeyfunc runs the shared parse/validate path for all
// algorithms. Parse and signature problems collapse into ErrMalformed;
// expiry is reported separately so validators can order their checks.
func verifyWithKeyfunc(raw, issuer, method string, keyfunc jwt.Keyfunc) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method}),
		jwt.WithLeeway(Leeway),
	)

	token, err := parser.ParseWithClaims(raw, &Claims{}, keyfunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, ErrIssuer
	}

	return *claims, nil
}
