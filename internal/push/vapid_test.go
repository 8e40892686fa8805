package push

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVAPIDKeys_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vapid.json")
	keys := &VAPIDKeys{PublicKey: "pub", PrivateKey: "priv"}
	require.NoError(t, SaveVAPIDKeys(path, keys))

	got, err := LoadVAPIDKeys(path)
	require.NoError(t, err)
	assert.Equal(t, keys, got)
}

func TestVAPIDKeys_LoadIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")
	require.NoError(t, SaveVAPIDKeys(path, &VAPIDKeys{PublicKey: "pub"}))
	_, err := LoadVAPIDKeys(path)
	assert.ErrorIs(t, err, errIncompleteKeys)
}

func TestEnsureVAPIDKeys_PrefersEnv(t *testing.T) {
	t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
	t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
	keys, err := EnsureVAPIDKeys(filepath.Join(t.TempDir(), "unused.json"))
	require.NoError(t, err)
	assert.Equal(t, "env-pub", keys.PublicKey)
}

func TestEnsureVAPIDKeys_GeneratesAndPersists(t *testing.T) {
	t.Setenv("VAPID_PUBLIC_KEY", "")
	t.Setenv("VAPID_PRIVATE_KEY", "")
	path := filepath.Join(t.TempDir(), "vapid.json")

	first, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	require.True(t, first.Complete())

	second, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKeysPath(t *testing.T) {
	t.Setenv("VAPID_KEYS_FILE", "")
	assert.Equal(t, DefaultVAPIDKeysPath, KeysPath(""))
	t.Setenv("VAPID_KEYS_FILE", "/tmp/k.json")
	assert.Equal(t, "/tmp/k.json", KeysPath(""))
	assert.Equal(t, "x.json", KeysPath("x.json"))
}
