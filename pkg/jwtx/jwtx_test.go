package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testHS256(t *testing.T) *HS256Codec {
	t.Helper()
	codec, err := NewHS256([]byte("0123456789abcdef0123456789abcdef"), "gatekeeper-test")
	require.NoError(t, err)
	return codec
}

func testEdDSA(t *testing.T) *EdDSACodec {
	t.Helper()
	pemKey, err := GenerateEdDSAPEM()
	require.NoError(t, err)
	codec, err := NewEdDSA("test-key", pemKey, "gatekeeper-test")
	require.NoError(t, err)
	return codec
}

func TestHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewHS256([]byte("too short"), "iss")
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	codecs := map[string]Codec{
		"HS256": testHS256(t),
		"EdDSA": testEdDSA(t),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			claims := NewClaims(
				KindRefresh,
				"jti-1", "user-1", "fam-1", "alice",
				3,
				"gatekeeper-test",
				time.Hour,
				now,
			)

			raw, err := codec.Sign(claims)
			require.NoError(t, err)

			got, err := codec.Verify(raw)
			require.NoError(t, err)
			require.Equal(t, KindRefresh, got.Kind)
			require.Equal(t, "jti-1", got.ID)
			require.Equal(t, "user-1", got.Subject)
			require.Equal(t, "fam-1", got.Family)
			require.Equal(t, int64(3), got.Sequence)
			require.Equal(t, "alice", got.Username)
		})
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	codec := testHS256(t)
	for _, raw := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := codec.Verify(raw)
		require.ErrorIs(t, err, ErrMalformed)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	signedBy := testHS256(t)
	other, err := NewHS256([]byte("ffffffffffffffffffffffffffffffff"), "gatekeeper-test")
	require.NoError(t, err)

	raw, err := signedBy.Sign(NewClaims(
		KindAccess, "jti", "sub", "fam", "", 0, "gatekeeper-test", time.Hour, time.Now(),
	))
	require.NoError(t, err)

	_, err = other.Verify(raw)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyReportsExpiry(t *testing.T) {
	t.Parallel()

	codec := testHS256(t)
	issued := time.Now().Add(-2 * time.Hour)

	raw, err := codec.Sign(NewClaims(
		KindAccess, "jti", "sub", "fam", "", 0, "gatekeeper-test", time.Hour, issued,
	))
	require.NoError(t, err)

	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyChecksIssuer(t *testing.T) {
	t.Parallel()

	signer, err := NewHS256([]byte("0123456789abcdef0123456789abcdef"), "someone-else")
	require.NoError(t, err)
	raw, err := signer.Sign(NewClaims(
		KindAccess, "jti", "sub", "fam", "", 0, "someone-else", time.Hour, time.Now(),
	))
	require.NoError(t, err)

	_, err = testHS256(t).Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestCollectJWKS(t *testing.T) {
	t.Parallel()

	hs := testHS256(t)
	ed := testEdDSA(t)

	set := CollectJWKS(hs, ed)
	require.Len(t, set.Keys, 1)
	require.Equal(t, "OKP", set.Keys[0].Kty)
	require.Equal(t, "test-key", set.Keys[0].Kid)

	empty := CollectJWKS(hs)
	require.Empty(t, empty.Keys)
}
