package sqlite

import (
	"context"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
)

type revocationsRepo struct {
	q querier
}

func (r *revocationsRepo) Revoke(ctx context.Context, rec domain.RevocationRecord) error {
	revokedAt := rec.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now()
	}
	// INSERT OR IGNORE keeps the denylist append-only and idempotent:
	// the first revocation of a jti wins and is never overwritten.
	_, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO revoked_tokens (jti, family_id, reason, revoked_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.JTI, rec.FamilyID, string(rec.Reason),
		toMillis(revokedAt), toMillis(rec.ExpiresAt),
	)
	return err
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, toMillis(cutoff))
	return err
}
