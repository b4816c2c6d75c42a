// Package cryptox provides password hashing for the credential
// verifier. Hashes are Argon2id in PHC string format so parameters can
// be tuned without invalidating stored credentials.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. OWASP-recommended baseline for interactive logins.
const (
	saltLength  = 16
	iterations  = 3
	memory      = 64 * 1024 // KiB
	parallelism = 2
	keyLength   = 32
)

// ErrMismatch reports that a password does not match its stored hash.
var ErrMismatch = errors.New("cryptox: password does not match")

// HashPassword returns a PHC-format Argon2id hash of password,
// embedding a random salt and the hashing parameters.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks password against a PHC-format Argon2id hash
// using a constant-time comparison. Returns ErrMismatch on failure and
// a descriptive error for malformed hashes.
func VerifyPassword(password, encodedHash string) error {
	salt, expected, mem, iters, par, err := decodeHash(encodedHash)
	if err != nil {
		return err
	}

	// #nosec G115 -- key length bounded by the decoded hash size
	computed := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expected)))

	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return ErrMismatch
	}
	return nil
}

// DecoyHash is a valid Argon2id hash of a random throwaway secret.
// Verifiers run VerifyPassword against it when a username does not
// exist, so a rejected login costs the same time either way and the
// response does not leak which usernames are registered.
func DecoyHash() string {
	decoyOnce.Do(func() {
		h, err := HashPassword(mustRandomSecret())
		if err != nil {
			// rand.Read failing means the process cannot do any auth work.
			panic(fmt.Sprintf("cryptox: decoy hash: %v", err))
		}
		decoy = h
	})
	return decoy
}

func decodeHash(encodedHash string) (salt, hash []byte, mem, iters uint32, par uint8, err error) {
	var parts []string
	start := 0
	for i := 0; i < len(encodedHash); i++ {
		if encodedHash[i] == '$' {
			parts = append(parts, encodedHash[start:i])
			start = i + 1
		}
	}
	parts = append(parts, encodedHash[start:])

	// Expected layout: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return nil, nil, 0, 0, 0, errors.New("cryptox: not a PHC argon2id hash")
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("cryptox: parse parameters: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("cryptox: decode salt: %w", err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("cryptox: decode hash: %w", err)
	}
	return salt, hash, mem, iters, par, nil
}
