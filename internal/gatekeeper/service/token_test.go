package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/openagri/gatekeeper/pkg/cryptox"
	"github.com/openagri/gatekeeper/pkg/idx"
	"github.com/openagri/gatekeeper/pkg/jwtx"
)

const testIssuer = "gatekeeper-test"

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestCodec(t *testing.T) jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), testIssuer)
	require.NoError(t, err)
	return codec
}

func newTokenService(t *testing.T, st store.Store) *TokenService {
	t.Helper()
	return NewTokenService(newTestCodec(t), st, testIssuer, 15*time.Minute, 24*time.Hour)
}

func seedIdentity(t *testing.T, st store.Store, password string) domain.Identity {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	id := domain.Identity{
		ID:           idx.New().String(),
		Username:     "farmer-" + idx.New().String(),
		Email:        "farmer@example.org",
		PasswordHash: hash,
	}
	require.NoError(t, st.Identities().CreateIdentity(context.Background(), id))
	return id
}

func TestIssueThenValidate(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair, err := svc.Issue(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	access, err := svc.Validate(ctx, pair.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, id.ID, access.Subject)
	require.Equal(t, id.Username, access.Username)
	require.NotEmpty(t, access.Family)

	refresh, err := svc.Validate(ctx, pair.RefreshToken, jwtx.KindRefresh)
	require.NoError(t, err)
	require.Equal(t, access.Family, refresh.Family)
	require.Equal(t, refresh.ID, refresh.Family, "family id is the first refresh jti")
	require.Equal(t, int64(1), refresh.Sequence)

	// Kind narrowing rejects the other kind as malformed.
	_, err = svc.Validate(ctx, pair.AccessToken, jwtx.KindRefresh)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)

	_, err := svc.Validate(context.Background(), "not.a.token", "")
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestValidateExpiryBeatsRevocation(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()

	// A token that is both expired and revoked must report expired:
	// expiry is checked first and costs no store round trip.
	jti := idx.New().String()
	claims := jwtx.NewClaims(jwtx.KindAccess, jti, "subject", "fam", "", 0,
		testIssuer, -2*time.Minute, time.Now())
	raw, err := svc.Codec.Sign(claims)
	require.NoError(t, err)

	require.NoError(t, st.Revocations().Revoke(ctx, domain.RevocationRecord{
		JTI:       jti,
		FamilyID:  "fam",
		Reason:    domain.ReasonAdmin,
		ExpiresAt: time.Now(),
	}))

	_, err = svc.Validate(ctx, raw, "")
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestRotateAdvancesFamily(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair1, err := svc.Issue(ctx, id)
	require.NoError(t, err)
	first, err := svc.Validate(ctx, pair1.RefreshToken, jwtx.KindRefresh)
	require.NoError(t, err)

	pair2, err := svc.Rotate(ctx, pair1.RefreshToken)
	require.NoError(t, err)

	second, err := svc.Validate(ctx, pair2.RefreshToken, jwtx.KindRefresh)
	require.NoError(t, err)
	require.Equal(t, first.Family, second.Family)
	require.Equal(t, first.Sequence+1, second.Sequence)

	// The superseded refresh token is revoked, not merely forgotten.
	_, err = svc.Validate(ctx, pair1.RefreshToken, jwtx.KindRefresh)
	require.ErrorIs(t, err, ErrRevokedToken)

	// Access tokens from before the rotation stay valid; rotation kills
	// only its predecessor refresh token.
	_, err = svc.Validate(ctx, pair1.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
}

func TestRotateReplayBurnsFamily(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair1, err := svc.Issue(ctx, id)
	require.NoError(t, err)
	pair2, err := svc.Rotate(ctx, pair1.RefreshToken)
	require.NoError(t, err)

	// Replaying the rotated-out token is proof of a leak.
	_, err = svc.Rotate(ctx, pair1.RefreshToken)
	require.ErrorIs(t, err, ErrReuseDetected)

	// The still-unused successor dies with the family.
	_, err = svc.Rotate(ctx, pair2.RefreshToken)
	require.ErrorIs(t, err, ErrRevokedToken)
	_, err = svc.Validate(ctx, pair2.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrRevokedToken)
}

func TestRotateRejectsAccessToken(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair, err := svc.Issue(ctx, id)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestConcurrentRotationHasOneWinner(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair, err := svc.Issue(ctx, id)
	require.NoError(t, err)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		losses  []error
		winners []domain.TokenPair
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, got)
			} else {
				losses = append(losses, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one concurrent rotation may succeed")
	for _, err := range losses {
		// Losers land strictly after the winner, so their token is
		// already superseded (or the family already burned).
		require.True(t,
			errorsIsAny(err, ErrReuseDetected, ErrRevokedToken),
			"unexpected rotation error: %v", err)
	}

	// Any loser trips reuse detection, so even the winner's pair is
	// dead. The user logs in again; nothing is stuck.
	_, err = svc.Rotate(ctx, winners[0].RefreshToken)
	require.ErrorIs(t, err, ErrRevokedToken)
}

func TestLogoutCascadesToWholeFamily(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	pair, err := svc.Issue(ctx, id)
	require.NoError(t, err)

	// Logging out with the access token kills the refresh token too.
	claims, err := svc.Logout(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, id.ID, claims.Subject)

	_, err = svc.Validate(ctx, pair.AccessToken, jwtx.KindAccess)
	require.ErrorIs(t, err, ErrRevokedToken)
	_, err = svc.Validate(ctx, pair.RefreshToken, jwtx.KindRefresh)
	require.ErrorIs(t, err, ErrRevokedToken)
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRevokedToken)

	// Second logout with the same token reports it revoked.
	_, err = svc.Logout(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrRevokedToken)
}

func TestLogoutLeavesOtherFamiliesAlone(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	laptop, err := svc.Issue(ctx, id)
	require.NoError(t, err)
	phone, err := svc.Issue(ctx, id)
	require.NoError(t, err)

	_, err = svc.Logout(ctx, laptop.RefreshToken)
	require.NoError(t, err)

	// The other session survives: revocation is per family, not per
	// subject.
	_, err = svc.Validate(ctx, phone.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	_, err = svc.Rotate(ctx, phone.RefreshToken)
	require.NoError(t, err)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
