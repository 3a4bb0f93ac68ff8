// Package bloom adapts bits-and-blooms filters to the whitelist snapshot's
// negative pre-check.
package bloom

import (
	"math"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/wb-access/internal/access/repos/whitelist"
)

// factory implements whitelist.BloomFactory.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() whitelist.BloomFactory { return factory{} }

// New constructs a filter sized for capacity keys at the target
// false-positive rate.
func (factory) New(capacity uint64, fpRate float64) whitelist.BloomFilter {
	m, k := Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

// filter wraps a bits-and-blooms filter. Snapshots fill it completely
// before publishing, so it needs no lock: after that it is only read.
type filter struct {
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) { f.bf.Add(key) }

func (f *filter) MightContain(key []byte) bool { return f.bf.Test(key) }

// Size computes Bloom parameters from capacity n and target FP rate p:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Results are clamped to at least 1.
func Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}

var _ whitelist.BloomFactory = factory{}
