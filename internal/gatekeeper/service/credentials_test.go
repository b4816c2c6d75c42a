package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyCredentials(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &CredentialService{Store: st}
	ctx := context.Background()
	id := seedIdentity(t, st, "grain-silo-9")

	got, err := svc.Verify(ctx, id.Username, "grain-silo-9")
	require.NoError(t, err)
	require.Equal(t, id.ID, got.ID)

	_, err = svc.Verify(ctx, id.Username, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames are indistinguishable from wrong passwords.
	_, err = svc.Verify(ctx, "nobody", "grain-silo-9")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsDisabledIdentity(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := &CredentialService{Store: st}
	ctx := context.Background()

	id := seedIdentity(t, st, "grain-silo-9")
	require.NoError(t, st.Identities().SetDisabled(ctx, id.ID, true))

	// Even the correct password is rejected, with the same error the
	// wrong one gets.
	_, err := svc.Verify(ctx, id.Username, "grain-silo-9")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
