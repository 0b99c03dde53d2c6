package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLifecycle(t *testing.T) {
	s := NewFileStore("octobar-test", t.TempDir())

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, HasToken(s))

	require.NoError(t, s.Set("  ghp_secret  "))
	tok, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", tok)
	assert.True(t, HasToken(s))

	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(), "deleting an absent token")
}

func TestStoresRejectEmptySecrets(t *testing.T) {
	stores := map[string]TokenStore{
		"file":   NewFileStore("octobar-test", t.TempDir()),
		"memory": NewMemoryStore(""),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Set("   "), ErrEmpty)
			assert.False(t, HasToken(s))
		})
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("preloaded")
	tok, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "preloaded", tok)

	require.NoError(t, s.Set("rotated"))
	tok, _ = s.Get()
	assert.Equal(t, "rotated", tok)

	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotFound)
}
