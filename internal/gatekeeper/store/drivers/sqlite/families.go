package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
)

type familiesRepo struct {
	q querier
}

const familyColumns = `id, subject, tip_jti, sequence, expires_at, revoked_at, revoke_reason, created_at, updated_at`

func (r *familiesRepo) CreateFamily(ctx context.Context, f domain.RefreshFamily) error {
	now := toMillis(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO token_families (id, subject, tip_jti, sequence, expires_at, revoked_at, revoke_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Subject, f.TipJTI, f.Sequence, toMillis(f.ExpiresAt),
		toNullMillis(f.RevokedAt), toNullString(string(f.RevokeReason)),
		now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *familiesRepo) GetFamily(ctx context.Context, id string) (domain.RefreshFamily, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+familyColumns+` FROM token_families WHERE id = ?`, id)
	return scanFamily(row)
}

// AdvanceTip is the database half of the per-family critical section:
// the conditional WHERE means two rotations racing on the same family
// can never both succeed, even across gateway instances sharing one
// database.
func (r *familiesRepo) AdvanceTip(
	ctx context.Context,
	familyID, expectTip, newTip string,
	expiresAt time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE token_families
		SET tip_jti = ?, sequence = sequence + 1, expires_at = ?, updated_at = ?
		WHERE id = ? AND tip_jti = ? AND revoked_at IS NULL`,
		newTip, toMillis(expiresAt), toMillis(time.Now()),
		familyID, expectTip,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStaleTip
	}
	return nil
}

func (r *familiesRepo) RevokeFamily(
	ctx context.Context,
	familyID string,
	reason domain.RevocationReason,
) error {
	now := toMillis(time.Now())
	// revoked_at IS NULL keeps revocation monotonic: the first reason
	// and timestamp win.
	res, err := r.q.ExecContext(ctx, `
		UPDATE token_families
		SET revoked_at = ?, revoke_reason = ?, updated_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		now, string(reason), now, familyID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already revoked or unknown. Distinguish so callers can treat
		// re-revocation as success.
		var exists int
		err := r.q.QueryRowContext(ctx,
			`SELECT 1 FROM token_families WHERE id = ?`, familyID).Scan(&exists)
		if err != nil {
			return mapNotFound(err)
		}
	}
	return nil
}

func (r *familiesRepo) IsFamilyRevoked(ctx context.Context, familyID string) (bool, error) {
	var revoked sql.NullInt64
	err := r.q.QueryRowContext(ctx,
		`SELECT revoked_at FROM token_families WHERE id = ?`, familyID).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// An unknown family means the row was purged after
			// revocation or expiry. Fail closed.
			return true, nil
		}
		return false, err
	}
	return revoked.Valid, nil
}

func (r *familiesRepo) DeleteExpiredFamilies(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM token_families WHERE expires_at < ?`, toMillis(cutoff))
	return err
}

func scanFamily(row *sql.Row) (domain.RefreshFamily, error) {
	var (
		f                    domain.RefreshFamily
		expiresAt            int64
		revokedAt            sql.NullInt64
		reason               sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&f.ID, &f.Subject, &f.TipJTI, &f.Sequence, &expiresAt,
		&revokedAt, &reason, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.RefreshFamily{}, mapNotFound(err)
	}
	f.ExpiresAt = fromMillis(expiresAt)
	f.RevokedAt = fromNullMillis(revokedAt)
	if reason.Valid {
		f.RevokeReason = domain.RevocationReason(reason.String)
	}
	f.CreatedAt = fromMillis(createdAt)
	f.UpdatedAt = fromMillis(updatedAt)
	return f, nil
}
