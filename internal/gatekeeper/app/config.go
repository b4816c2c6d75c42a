package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the gateway's runtime configuration, loaded from the
// environment.
type Config struct {
	// Issuer is the iss claim stamped on every token.
	Issuer string `env:"GATEKEEPER_ISSUER" envDefault:"gatekeeper"`

	// Algorithm selects the signing scheme: HS256 (shared secret,
	// downstream services validate remotely) or EdDSA (keypair,
	// downstream services may verify via JWKS).
	Algorithm string `env:"GATEKEEPER_ALGORITHM" envDefault:"HS256"`

	// HS256Secret is required under HS256 and must be at least 32 bytes.
	HS256Secret string `env:"GATEKEEPER_HS256_SECRET,unset"`

	// EdDSAKeyFile points at a PKCS8 PEM Ed25519 private key. Empty
	// under EdDSA means an ephemeral key is generated at startup, which
	// invalidates all outstanding tokens on restart.
	EdDSAKeyFile string `env:"GATEKEEPER_EDDSA_KEY_FILE"`

	AccessTTL  time.Duration `env:"GATEKEEPER_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"GATEKEEPER_REFRESH_TTL" envDefault:"24h"`

	DatabaseFile string `env:"GATEKEEPER_DATABASE_FILE" envDefault:"gatekeeper.db"`

	// ServicesFile is the YAML registry of downstream services. Empty
	// means no registrations: logins work, nothing is notified.
	ServicesFile string `env:"GATEKEEPER_SERVICES_FILE"`

	FanoutTimeout     time.Duration `env:"GATEKEEPER_FANOUT_TIMEOUT" envDefault:"5s"`
	FanoutRetries     uint64        `env:"GATEKEEPER_FANOUT_RETRIES" envDefault:"2"`
	FanoutConcurrency int           `env:"GATEKEEPER_FANOUT_CONCURRENCY" envDefault:"8"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads and validates configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Algorithm {
	case "HS256":
		if len(c.HS256Secret) < 32 {
			return errors.New("config: GATEKEEPER_HS256_SECRET must be set and at least 32 bytes under HS256")
		}
	case "EdDSA":
		// Key file optional; ephemeral keys are generated when missing.
	default:
		return fmt.Errorf("config: unknown algorithm %q (want HS256 or EdDSA)", c.Algorithm)
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		// An access token outliving its refresh token makes rotation
		// pointless.
		return errors.New("config: access TTL must be shorter than refresh TTL")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}
