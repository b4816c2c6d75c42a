package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
)

type identitiesRepo struct {
	q querier
}

const identityColumns = `id, username, email, password_hash, superuser, disabled, last_login_at, created_at, updated_at`

func (r *identitiesRepo) CreateIdentity(ctx context.Context, id domain.Identity) error {
	now := toMillis(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO identities (id, username, email, password_hash, superuser, disabled, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.ID, id.Username, id.Email, id.PasswordHash,
		boolToInt(id.Superuser), boolToInt(id.Disabled),
		toNullMillis(id.LastLoginAt), now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetIdentityByUsername(ctx context.Context, username string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE username = ?`, username)
	return scanIdentity(row)
}

func (r *identitiesRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE identities SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *identitiesRepo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE identities SET disabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(disabled), toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func scanIdentity(row *sql.Row) (domain.Identity, error) {
	var (
		id                   domain.Identity
		superuser, disabled  int
		lastLogin            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&id.ID, &id.Username, &id.Email, &id.PasswordHash,
		&superuser, &disabled, &lastLogin, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	id.Superuser = superuser != 0
	id.Disabled = disabled != 0
	id.LastLoginAt = fromNullMillis(lastLogin)
	id.CreatedAt = fromMillis(createdAt)
	id.UpdatedAt = fromMillis(updatedAt)
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowChanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
