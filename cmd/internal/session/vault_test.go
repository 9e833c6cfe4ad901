package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mezon/cmd/security/seal"
)

func TestMemoryVault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := NewMemoryVault()

	_, err := v.Load(ctx)
	require.ErrorIs(t, err, ErrNoStoredSession)

	require.ErrorIs(t, v.Save(ctx, &Session{Token: "t"}), ErrInvalidSession)

	s := New("t", "r", false, "https://api")
	require.NoError(t, v.Save(ctx, s))
	s.Token = "mutated"

	got, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Token)

	require.NoError(t, v.Delete(ctx))
	_, err = v.Load(ctx)
	require.ErrorIs(t, err, ErrNoStoredSession)
}

func TestFileVault_SealedRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sealer, err := seal.New([]byte(strings.Repeat("k", 40)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	v := NewFileVault(path, sealer)

	s := New("access", "refresh", true, "https://api.mezon.ai")
	s.Remember = true
	require.NoError(t, v.Save(ctx, s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, seal.IsSealed(raw))
	assert.NotContains(t, string(raw), "access")

	got, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Token, got.Token)
	assert.Equal(t, s.RefreshToken, got.RefreshToken)
	assert.True(t, got.Remember)

	require.NoError(t, v.Delete(ctx))
	require.NoError(t, v.Delete(ctx))
	_, err = v.Load(ctx)
	require.ErrorIs(t, err, ErrNoStoredSession)
}

func TestFileVault_WrongKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	a, err := seal.New([]byte(strings.Repeat("a", 40)))
	require.NoError(t, err)
	b, err := seal.New([]byte(strings.Repeat("b", 40)))
	require.NoError(t, err)

	require.NoError(t, NewFileVault(path, a).Save(ctx, New("t", "r", false, "https://api")))

	_, err = NewFileVault(path, b).Load(ctx)
	require.ErrorIs(t, err, seal.ErrCorrupt)
}

func TestFileVault_Plaintext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	v := NewFileVault(path, nil)

	require.NoError(t, v.Save(ctx, New("t", "r", false, "https://api")))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"token":"t"`)
}
