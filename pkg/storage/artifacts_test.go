package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save("models/dropout_v1.gob", []byte("blob"))
	require.NoError(t, err)
	assert.Equal(t, "models/dropout_v1.gob", key)
	assert.True(t, store.Exists(key))

	data, err := store.Load(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), data)

	require.NoError(t, store.Delete(key))
	assert.False(t, store.Exists(key))
	// deleting again is not an error
	require.NoError(t, store.Delete(key))
}

func TestArtifactStoreLoadMissing(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nope.gob")
	assert.Error(t, err)
}

func TestArtifactStoreConfinesKeysToBaseDir(t *testing.T) {
	base := t.TempDir()
	store, err := NewArtifactStore(base)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(base), "escape.gob")
	_, err = store.Save("../escape.gob", []byte("blob"))
	require.NoError(t, err)

	// the traversal component is stripped, not honored
	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr))
	assert.True(t, store.Exists("escape.gob"))
}
