package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySaveLoad(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config", "owner_key")
	require.NoError(t, k.Save(path))

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, k.Address(), loaded.Address())
	assert.Equal(t, k.PublicKey(), loaded.PublicKey())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadKeyErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadKey(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))

	path := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(path, []byte("zz"), 0o600))
	_, err = LoadKey(path)
	require.ErrorIs(t, err, ErrInvalidKeyFile)
}

func TestHexToKeyAcceptsPrefix(t *testing.T) {
	const hexKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	a, err := HexToKey(hexKey)
	require.NoError(t, err)
	b, err := HexToKey("0x" + hexKey + "\n")
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())
}
