// Package memo caches the most recent access decisions of one filter.
package memo

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/haukened/wb-access/internal/access/domain"
)

// Memo is a small verdict cache keyed by canonical URL key. It is not safe
// for concurrent use; each filter owns its own.
type Memo interface {
	Get(key string) (domain.Verdict, bool)
	Put(key string, v domain.Verdict)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

type lruMemo struct {
	lru       *simplelru.LRU[string, domain.Verdict]
	hits      uint64
	misses    uint64
	evictions uint64
}

type disabledMemo struct{}

// New returns a Memo holding up to size verdicts. A filter's last-decision
// memo uses size 1, so each new key replaces the previous one. size <= 0
// returns a memo that always misses.
func New(size int) (Memo, error) {
	if size <= 0 {
		return disabledMemo{}, nil
	}
	m := &lruMemo{}
	cache, err := simplelru.NewLRU[string, domain.Verdict](size, func(string, domain.Verdict) {
		m.evictions++
	})
	if err != nil {
		return nil, err
	}
	m.lru = cache
	return m, nil
}

// Last returns the single-entry memo used by filters.
func Last() Memo {
	m, _ := New(1)
	return m
}

func (m *lruMemo) Get(key string) (domain.Verdict, bool) {
	if v, ok := m.lru.Get(key); ok {
		m.hits++
		return v, true
	}
	m.misses++
	return domain.Exclude, false
}

func (m *lruMemo) Put(key string, v domain.Verdict) { m.lru.Add(key, v) }

func (m *lruMemo) Len() int { return m.lru.Len() }

// Purge drops every entry; dropped entries count as evictions.
func (m *lruMemo) Purge() { m.lru.Purge() }

func (m *lruMemo) Stats() (uint64, uint64, uint64) { return m.hits, m.misses, m.evictions }

func (disabledMemo) Get(string) (domain.Verdict, bool) { return domain.Exclude, false }
func (disabledMemo) Put(string, domain.Verdict)        {}
func (disabledMemo) Len() int                          { return 0 }
func (disabledMemo) Purge()                            {}
func (disabledMemo) Stats() (uint64, uint64, uint64)   { return 0, 0, 0 }

var (
	_ Memo = (*lruMemo)(nil)
	_ Memo = disabledMemo{}
)
