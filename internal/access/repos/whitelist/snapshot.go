package whitelist

import (
	"sort"
	"time"
)

// Meta describes where a Snapshot came from.
type Meta struct {
	Source   string    // whitelist file path
	ModTime  int64     // file mod-time at load, 0 when unknown
	LoadedAt time.Time // when the snapshot was built
	Skipped  int       // lines dropped because they could not be canonicalized
}

// Snapshot is an immutable set of SURT prefixes. It is safe for concurrent
// readers; a new Snapshot replaces it wholesale on reload.
type Snapshot struct {
	keys  map[string]struct{}
	bloom BloomFilter
	meta  Meta
}

// NewSnapshot builds a Snapshot from already-normalized SURT keys.
// Duplicate keys collapse. When factory is nil no Bloom pre-filter is built.
func NewSnapshot(keys []string, meta Meta, factory BloomFactory, fpRate float64) *Snapshot {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s := &Snapshot{keys: set, meta: meta}
	if factory != nil {
		bf := factory.New(uint64(len(set)), fpRate)
		for k := range set {
			bf.Add([]byte(k))
		}
		s.bloom = bf
	}
	return s
}

// Contains reports whether term is a whitelist entry.
func (s *Snapshot) Contains(term string) bool {
	if s.bloom != nil && !s.bloom.MightContain([]byte(term)) {
		return false
	}
	_, ok := s.keys[term]
	return ok
}

// Len returns the number of distinct entries.
func (s *Snapshot) Len() int { return len(s.keys) }

// Keys returns the entries in sorted order.
func (s *Snapshot) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Meta returns the snapshot's provenance.
func (s *Snapshot) Meta() Meta { return s.meta }

func (s *Snapshot) Source() string      { return s.meta.Source }
func (s *Snapshot) ModTime() int64      { return s.meta.ModTime }
func (s *Snapshot) LoadedAt() time.Time { return s.meta.LoadedAt }
