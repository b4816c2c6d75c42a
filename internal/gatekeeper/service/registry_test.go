package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRegistry(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `
services:
  - name: irrigation
    api_url: https://irrigation.internal/api
    post_auth_url: https://irrigation.internal/hooks/auth
  - name: farm-calendar
    api_url: https://calendar.internal/api
    post_auth_url: https://calendar.internal/hooks/auth
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	require.Equal(t, "irrigation", list[0].Name)
	require.Equal(t, "farm-calendar", list[1].Name)

	svc, err := reg.Lookup("irrigation")
	require.NoError(t, err)
	require.Equal(t, "https://irrigation.internal/hooks/auth", svc.PostAuthURL)

	_, err = reg.Lookup("greenhouse")
	require.ErrorIs(t, err, ErrUnknownService)
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `
services:
  - name: irrigation
    api_url: https://a.internal/api
    post_auth_url: https://a.internal/hooks/auth
  - name: irrigation
    api_url: https://b.internal/api
    post_auth_url: https://b.internal/hooks/auth
`)

	_, err := LoadRegistry(path)
	require.ErrorContains(t, err, "duplicate service")
}

func TestLoadRegistryRejectsRelativeURLs(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `
services:
  - name: irrigation
    api_url: /api
    post_auth_url: https://a.internal/hooks/auth
`)

	_, err := LoadRegistry(path)
	require.ErrorContains(t, err, "not an absolute URL")
}
