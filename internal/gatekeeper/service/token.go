package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/pkg/idx"
	"github.com/openagri/gatekeeper/pkg/jwtx"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// TokenService owns the token lifecycle: issuance on login, stateless
// validation plus revocation lookup, one-time refresh rotation, and the
// logout cascade.
type TokenService struct {
	Codec      jwtx.Codec
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	locks familyLocks
}

// NewTokenService wires a token service. TTLs and issuer are validated
// at config load, not here.
func NewTokenService(codec jwtx.Codec, st store.Store, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		Codec:      codec,
		Store:      st,
		Issuer:     issuer,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// Issue mints a fresh access/refresh pair for an authenticated
// identity and opens a new refresh family. The family id is the
// initial refresh token's jti; every descendant token carries it.
func (s *TokenService) Issue(ctx context.Context, identity domain.Identity) (domain.TokenPair, error) {
	now := time.Now().UTC()
	accessJTI := idx.New().String()
	refreshJTI := idx.New().String()
	familyID := refreshJTI

	err := s.Store.Families().CreateFamily(ctx, domain.RefreshFamily{
		ID:        familyID,
		Subject:   identity.ID,
		TipJTI:    refreshJTI,
		Sequence:  1,
		ExpiresAt: now.Add(s.RefreshTTL),
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: open refresh family: %w", ErrStoreUnavailable, err)
	}

	return s.signPair(identity.ID, identity.Username, familyID, accessJTI, refreshJTI, 1, now)
}

// Validate verifies a raw token end to end: signature, then expiry,
// then revocation. The order is observable: an expired token reports
// expired even when it was also revoked, and revocation checks only
// spend store round trips on tokens that already passed the free
// checks.
//
// want narrows the accepted kind; pass "" to accept either. A
// kind mismatch is malformed input, not a distinct failure.
func (s *TokenService) Validate(ctx context.Context, raw string, want jwtx.Kind) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(raw)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return jwtx.Claims{}, ErrExpiredToken
	case err != nil:
		return jwtx.Claims{}, ErrMalformedToken
	}

	if want != "" && claims.Kind != want {
		return jwtx.Claims{}, ErrMalformedToken
	}

	revoked, err := s.Store.Revocations().IsRevoked(ctx, claims.ID)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: revocation lookup: %w", ErrStoreUnavailable, err)
	}
	if revoked {
		return jwtx.Claims{}, ErrRevokedToken
	}

	// The family check is what makes logout cascade to access tokens
	// issued before it.
	famRevoked, err := s.Store.Families().IsFamilyRevoked(ctx, claims.Family)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: family lookup: %w", ErrStoreUnavailable, err)
	}
	if famRevoked {
		return jwtx.Claims{}, ErrRevokedToken
	}

	return claims, nil
}

// Rotate redeems a refresh token for a new pair. Each refresh token
// rotates at most once: only the family's current tip may advance it,
// and presenting any older member proves the token leaked, so the
// whole family dies on the spot.
//
// Concurrent rotations of the same family serialize on a per-family
// lock; the loser then finds the tip already advanced and takes the
// reuse path. Families never interfere with each other.
func (s *TokenService) Rotate(ctx context.Context, raw string) (domain.TokenPair, error) {
	claims, err := s.Codec.Verify(raw)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return domain.TokenPair{}, ErrExpiredToken
	case err != nil:
		return domain.TokenPair{}, ErrMalformedToken
	}
	if claims.Kind != jwtx.KindRefresh {
		return domain.TokenPair{}, ErrMalformedToken
	}

	unlock := s.locks.lock(claims.Family)
	defer unlock()

	now := time.Now().UTC()
	newAccessJTI := idx.New().String()
	newRefreshJTI := idx.New().String()

	var (
		reuse    bool
		sequence int64
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		fam, err := tx.Families().GetFamily(ctx, claims.Family)
		if errors.Is(err, store.ErrNotFound) {
			// Purged family: treat like a revoked one.
			return ErrRevokedToken
		}
		if err != nil {
			return fmt.Errorf("%w: load family: %w", ErrStoreUnavailable, err)
		}

		if fam.Revoked() {
			return ErrRevokedToken
		}

		if fam.TipJTI != claims.ID {
			// A non-tip member is a replay of an already-rotated token.
			// Burn the family; the commit below must survive the error
			// we hand the caller, hence the flag instead of a return.
			reuse = true
			if err := tx.Families().RevokeFamily(ctx, fam.ID, domain.ReasonReuse); err != nil {
				return fmt.Errorf("%w: revoke family on reuse: %w", ErrStoreUnavailable, err)
			}
			if err := tx.Revocations().Revoke(ctx, domain.RevocationRecord{
				JTI:       claims.ID,
				FamilyID:  fam.ID,
				Reason:    domain.ReasonReuse,
				ExpiresAt: claims.ExpiresAt.Time,
			}); err != nil {
				return fmt.Errorf("%w: record reuse: %w", ErrStoreUnavailable, err)
			}
			return nil
		}

		// The tip itself may have been individually revoked by an admin.
		revoked, err := tx.Revocations().IsRevoked(ctx, claims.ID)
		if err != nil {
			return fmt.Errorf("%w: revocation lookup: %w", ErrStoreUnavailable, err)
		}
		if revoked {
			return ErrRevokedToken
		}

		if err := tx.Revocations().Revoke(ctx, domain.RevocationRecord{
			JTI:       claims.ID,
			FamilyID:  fam.ID,
			Reason:    domain.ReasonRotated,
			ExpiresAt: claims.ExpiresAt.Time,
		}); err != nil {
			return fmt.Errorf("%w: supersede old refresh: %w", ErrStoreUnavailable, err)
		}

		err = tx.Families().AdvanceTip(ctx, fam.ID, claims.ID, newRefreshJTI, now.Add(s.RefreshTTL))
		if errors.Is(err, store.ErrStaleTip) {
			// Can only happen if another instance advanced the family
			// outside our process lock.
			return ErrRevokedToken
		}
		if err != nil {
			return fmt.Errorf("%w: advance tip: %w", ErrStoreUnavailable, err)
		}

		sequence = fam.Sequence + 1
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	if reuse {
		slogx.FromContext(ctx).Warn("refresh token reuse detected, family revoked",
			"family", claims.Family, "subject", claims.Subject)
		return domain.TokenPair{}, ErrReuseDetected
	}

	return s.signPair(claims.Subject, claims.Username, claims.Family, newAccessJTI, newRefreshJTI, sequence, now)
}

// Logout revokes the presented token's whole family. Either kind is
// accepted; both carry the family id. Idempotent in effect, but a
// second logout with the same token reports it as already revoked.
func (s *TokenService) Logout(ctx context.Context, raw string) (jwtx.Claims, error) {
	claims, err := s.Validate(ctx, raw, "")
	if err != nil {
		return jwtx.Claims{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Families().RevokeFamily(ctx, claims.Family, domain.ReasonLogout); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: revoke family: %w", ErrStoreUnavailable, err)
		}
		return tx.Revocations().Revoke(ctx, domain.RevocationRecord{
			JTI:       claims.ID,
			FamilyID:  claims.Family,
			Reason:    domain.ReasonLogout,
			ExpiresAt: claims.ExpiresAt.Time,
		})
	})
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return jwtx.Claims{}, err
		}
		return jwtx.Claims{}, fmt.Errorf("%w: record logout: %w", ErrStoreUnavailable, err)
	}

	return claims, nil
}

func (s *TokenService) signPair(
	subject, username, familyID, accessJTI, refreshJTI string,
	sequence int64,
	now time.Time,
) (domain.TokenPair, error) {
	access, err := s.Codec.Sign(jwtx.NewClaims(
		jwtx.KindAccess, accessJTI, subject, familyID, username, 0, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.Codec.Sign(jwtx.NewClaims(
		jwtx.KindRefresh, refreshJTI, subject, familyID, username, sequence, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// familyLocks hands out one mutex per live family id. Entries are
// reference counted and dropped when the last holder releases, so the
// map stays proportional to in-flight rotations, not total families.
type familyLocks struct {
	mu    sync.Mutex
	inUse map[string]*familyLock
}

type familyLock struct {
	sync.Mutex
	refs int
}

func (l *familyLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.inUse == nil {
		l.inUse = make(map[string]*familyLock)
	}
	fl, ok := l.inUse[key]
	if !ok {
		fl = &familyLock{}
		l.inUse[key] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.Lock()
	return func() {
		fl.Unlock()
		l.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(l.inUse, key)
		}
		l.mu.Unlock()
	}
}
