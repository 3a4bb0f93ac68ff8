package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/wb-access/internal/access/repos/whitelist"
	"github.com/haukened/wb-access/internal/access/repos/whitelist/bloom"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"), Options{Bloom: bloom.NewFactory(), FPRate: 0.01})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RestoreEmpty(t *testing.T) {
	s := openTemp(t)
	_, err := s.Restore()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_SaveRestoreRoundTrip(t *testing.T) {
	s := openTemp(t)
	loaded := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	snap := whitelist.NewSnapshot(
		[]string{"com,example)/allowed", "org,archive", "com,example)/allowed"},
		whitelist.Meta{Source: "/etc/wb/whitelist.txt", LoadedAt: loaded, Skipped: 2},
		nil, 0,
	)
	require.NoError(t, s.Save(snap))

	got, err := s.Restore()
	require.NoError(t, err)
	assert.Equal(t, []string{"com,example)/allowed", "org,archive"}, got.Keys())
	assert.True(t, got.Contains("org,archive"))
	assert.False(t, got.Contains("org,archive)/"))
	assert.Equal(t, "/etc/wb/whitelist.txt", got.Meta().Source)
	assert.True(t, loaded.Equal(got.Meta().LoadedAt))
	assert.Equal(t, 2, got.Meta().Skipped)
}

func TestStore_SaveReplacesPreviousKeys(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save(whitelist.NewSnapshot([]string{"a,old"}, whitelist.Meta{LoadedAt: time.Unix(1, 0)}, nil, 0)))
	require.NoError(t, s.Save(whitelist.NewSnapshot([]string{"b,new"}, whitelist.Meta{LoadedAt: time.Unix(2, 0)}, nil, 0)))

	got, err := s.Restore()
	require.NoError(t, err)
	assert.Equal(t, []string{"b,new"}, got.Keys())
}

func TestStore_ReopenKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Save(whitelist.NewSnapshot([]string{"com,example"}, whitelist.Meta{LoadedAt: time.Unix(5, 0)}, nil, 0)))
	require.NoError(t, s.Close())

	s, err = Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Restore()
	require.NoError(t, err)
	assert.True(t, got.Contains("com,example"))
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "snap.db"), Options{})
	assert.Error(t, err)
}
