package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
)

var (
	decoyOnce sync.Once
	decoy     string
)

func mustRandomSecret() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("cryptox: random source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}
