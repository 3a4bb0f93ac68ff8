package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/wb-access/internal/access/domain"
)

func TestLast_HoldsOneEntry(t *testing.T) {
	m := Last()
	_, ok := m.Get("com,example)/a")
	assert.False(t, ok)

	m.Put("com,example)/a", domain.Include)
	v, ok := m.Get("com,example)/a")
	require.True(t, ok)
	assert.Equal(t, domain.Include, v)

	m.Put("com,example)/b", domain.Exclude)
	assert.Equal(t, 1, m.Len())
	_, ok = m.Get("com,example)/a")
	assert.False(t, ok, "a new key must replace the previous one")
	v, ok = m.Get("com,example)/b")
	require.True(t, ok)
	assert.Equal(t, domain.Exclude, v)

	hits, misses, evictions := m.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)
	assert.Equal(t, uint64(1), evictions)
}

func TestNew_SameKeyOverwrites(t *testing.T) {
	m, err := New(1)
	require.NoError(t, err)
	m.Put("k", domain.Exclude)
	m.Put("k", domain.Include)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, domain.Include, v)
	_, _, evictions := m.Stats()
	assert.Zero(t, evictions)
}

func TestNew_LRUOrder(t *testing.T) {
	m, err := New(2)
	require.NoError(t, err)
	m.Put("a", domain.Include)
	m.Put("b", domain.Include)
	_, _ = m.Get("a")
	m.Put("c", domain.Exclude)

	_, ok := m.Get("b")
	assert.False(t, ok)
	_, ok = m.Get("a")
	assert.True(t, ok)
}

func TestPurge_CountsEvictions(t *testing.T) {
	m, err := New(3)
	require.NoError(t, err)
	m.Put("a", domain.Include)
	m.Put("b", domain.Include)
	m.Purge()
	assert.Equal(t, 0, m.Len())
	_, _, evictions := m.Stats()
	assert.Equal(t, uint64(2), evictions)
}

func TestNew_Disabled(t *testing.T) {
	m, err := New(0)
	require.NoError(t, err)
	m.Put("a", domain.Include)
	v, ok := m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, domain.Exclude, v)
	assert.Equal(t, 0, m.Len())
	m.Purge()
	h, mi, e := m.Stats()
	assert.Zero(t, h+mi+e)
}

func BenchmarkLast_Hit(b *testing.B) {
	m := Last()
	m.Put("com,example)/", domain.Include)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := m.Get("com,example)/"); !ok {
			b.Fatal("unexpected miss")
		}
	}
}
