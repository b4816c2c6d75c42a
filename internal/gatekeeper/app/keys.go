package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openagri/gatekeeper/pkg/idx"
	"github.com/openagri/gatekeeper/pkg/jwtx"
)

// initCodec builds the signing codec from configuration. Config
// validation already guaranteed the algorithm is known and the HS256
// secret long enough.
func initCodec(cfg Config, logger *slog.Logger) (jwtx.Codec, error) {
	switch cfg.Algorithm {
	case "HS256":
		return jwtx.NewHS256([]byte(cfg.HS256Secret), cfg.Issuer)

	case "EdDSA":
		kid := idx.New().String()

		if cfg.EdDSAKeyFile == "" {
			// Ephemeral key: every restart invalidates outstanding
			// tokens. Fine for development, loud for anything else.
			logger.Warn("no Ed25519 key file configured, generating ephemeral key")
			pemKey, err := jwtx.GenerateEdDSAPEM()
			if err != nil {
				return nil, fmt.Errorf("generate Ed25519 key: %w", err)
			}
			return jwtx.NewEdDSA(kid, pemKey, cfg.Issuer)
		}

		pemKey, err := os.ReadFile(cfg.EdDSAKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read Ed25519 key file: %w", err)
		}
		return jwtx.NewEdDSA(kid, pemKey, cfg.Issuer)

	default:
		return nil, fmt.Errorf("unknown algorithm %q", cfg.Algorithm)
	}
}
