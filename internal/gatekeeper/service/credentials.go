package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/pkg/cryptox"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// lastLoginTimeout bounds the best-effort last-login write, which runs
// off the request path.
const lastLoginTimeout = 3 * time.Second

// CredentialService verifies presented credentials against stored
// identity records.
type CredentialService struct {
	Store store.Store
}

// Verify checks username/password and returns the matching identity.
//
// Every rejection is ErrInvalidCredentials: unknown usernames burn the
// same Argon2id work against a decoy hash that a wrong password burns
// against the real one, so neither the result code nor the response
// time reveals which usernames exist. Disabled identities are rejected
// the same way for the same reason.
func (s *CredentialService) Verify(
	ctx context.Context,
	username, password string,
) (domain.Identity, error) {
	identity, err := s.Store.Identities().GetIdentityByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = cryptox.VerifyPassword(password, cryptox.DecoyHash())
		return domain.Identity{}, ErrInvalidCredentials
	case err != nil:
		return domain.Identity{}, fmt.Errorf("%w: lookup identity: %w", ErrStoreUnavailable, err)
	}

	if err := cryptox.VerifyPassword(password, identity.PasswordHash); err != nil {
		return domain.Identity{}, ErrInvalidCredentials
	}

	if identity.Disabled {
		return domain.Identity{}, ErrInvalidCredentials
	}

	s.recordLastLogin(ctx, identity.ID)
	return identity, nil
}

// recordLastLogin stamps last_login_at without blocking the login
// critical path. Failures are logged and forgotten.
func (s *CredentialService) recordLastLogin(ctx context.Context, identityID string) {
	log := slogx.FromContext(ctx)
	bg := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(bg, lastLoginTimeout)
		defer cancel()

		if err := s.Store.Identities().RecordLogin(ctx, identityID, time.Now().UTC()); err != nil {
			log.Warn("last-login bookkeeping failed", "identity", identityID, "err", err)
		}
	}()
}
