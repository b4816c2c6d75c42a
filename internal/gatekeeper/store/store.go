package store

import (
	"context"
	"errors"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStaleTip reports a conditional tip advance that lost the race:
	// the family's tip no longer matches the expected jti.
	ErrStaleTip = errors.New("store: family tip changed")
)

// Store is the root data access interface. Concrete drivers (sqlite
// for single-instance deployments, a shared database for multi
// instance) implement it. Sub-repositories keep concerns separated;
// WithTx is the only sanctioned way to run multi-step mutations.
type Store interface {
	Identities() Identities
	Families() Families
	Revocations() Revocations

	ApplyMigrations() error

	// Tx starts a read/write transaction scoped to the same repos. The
	// caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns
	// nil and rolling back otherwise. Refresh rotation depends on this
	// for its check-then-act atomicity.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Identities reads provisioned user records. The gateway never creates
// identities in the request path; CreateIdentity exists for
// provisioning tooling and tests.
type Identities interface {
	CreateIdentity(ctx context.Context, id domain.Identity) error

	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByUsername is used during credential verification.
	GetIdentityByUsername(ctx context.Context, username string) (domain.Identity, error)

	// RecordLogin stamps last_login_at. Best-effort bookkeeping; the
	// login path does not block on it.
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// SetDisabled flips the disabled flag (administrative action).
	SetDisabled(ctx context.Context, id string, disabled bool) error
}

// Families tracks refresh-token lineages: current tip, rotation
// sequence, and revocation state.
type Families interface {
	CreateFamily(ctx context.Context, f domain.RefreshFamily) error

	GetFamily(ctx context.Context, id string) (domain.RefreshFamily, error)

	// AdvanceTip atomically moves the family tip from expectTip to
	// newTip, incrementing the sequence and extending the expiry.
	// Returns ErrStaleTip when expectTip is no longer the tip or the
	// family is revoked, so concurrent rotations cannot both win.
	AdvanceTip(ctx context.Context, familyID, expectTip, newTip string, expiresAt time.Time) error

	// RevokeFamily marks every token of the family invalid. Monotonic:
	// re-revoking keeps the original timestamp and reason.
	RevokeFamily(ctx context.Context, familyID string, reason domain.RevocationReason) error

	IsFamilyRevoked(ctx context.Context, familyID string) (bool, error)

	// DeleteExpiredFamilies purges families whose tip expired before
	// cutoff. Housekeeping only; validation never depends on it.
	DeleteExpiredFamilies(ctx context.Context, cutoff time.Time) error
}

// Revocations is the append-only denylist of individual token
// identifiers.
type Revocations interface {
	// Revoke records a jti as invalid. Idempotent: revoking an already
	// revoked jti keeps the first record.
	Revoke(ctx context.Context, rec domain.RevocationRecord) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired purges records whose token expired before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
