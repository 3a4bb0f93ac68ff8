package whitelist

// BloomFilter is the minimal interface a Snapshot needs from its
// pre-filter. It is fully populated before the snapshot is published.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds BloomFilters sized for a known number of keys.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// LineReader delivers the lines of a whitelist source in order.
type LineReader interface {
	EachLine(path string, fn func(line string)) error
}
