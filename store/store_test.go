package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_conformance(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) Store{
		"inmem": func(t *testing.T) Store {
			return NewInMem()
		},
		"file": func(t *testing.T) Store {
			s, err := NewFile(filepath.Join(t.TempDir(), "session.json"))
			require.NoError(t, err)
			return s
		},
	}

	for name, newStore := range stores {
		name, newStore := name, newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			s := newStore(t)

			_, err := s.Get(KeyToken)
			assert.ErrorIs(err, ErrNotFound)

			require.NoError(s.Put(KeyToken, "tok1"))
			require.NoError(s.Put(KeyRole, "admin"))

			got, err := s.Get(KeyToken)
			require.NoError(err)
			assert.Equal("tok1", got)

			// overwrite
			require.NoError(s.Put(KeyToken, "tok2"))
			got, err = s.Get(KeyToken)
			require.NoError(err)
			assert.Equal("tok2", got)

			require.NoError(s.DeleteAll())
			_, err = s.Get(KeyToken)
			assert.ErrorIs(err, ErrNotFound)
			_, err = s.Get(KeyRole)
			assert.ErrorIs(err, ErrNotFound)

			// deleting an empty store is not an error
			require.NoError(s.DeleteAll())
		})
	}
}

func TestFile_survivesRestart(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	path := filepath.Join(t.TempDir(), "auth", "session.json")

	s1, err := NewFile(path)
	require.NoError(err)
	require.NoError(s1.Put(KeyToken, "tok1"))
	require.NoError(s1.Put(KeyRole, "admin"))

	// a fresh store over the same path sees the same record
	s2, err := NewFile(path)
	require.NoError(err)
	got, err := s2.Get(KeyToken)
	require.NoError(err)
	assert.Equal("tok1", got)
	got, err = s2.Get(KeyRole)
	require.NoError(err)
	assert.Equal("admin", got)
}

func TestFile_permissions(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFile(path)
	require.NoError(err)
	require.NoError(s.Put(KeyToken, "tok1"))

	info, err := os.Stat(path)
	require.NoError(err)
	assert.Equal(os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_corruptRecord(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(os.WriteFile(path, []byte("not json"), 0o600))

	s, err := NewFile(path)
	require.NoError(err)
	_, err = s.Get(KeyToken)
	require.Error(err)
	require.NotErrorIs(err, ErrNotFound)
}
