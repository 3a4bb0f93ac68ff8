package domain

import "errors"

// ErrMalformedURL reports a URL that cannot be canonicalized or turned into
// SURT search terms. Callers treat it as Exclude.
var ErrMalformedURL = errors.New("malformed url")

// Canonicalizer normalizes raw URLs into canonical keys.
type Canonicalizer interface {
	// ToKey returns the canonical key for url, or an error wrapping ErrMalformedURL.
	ToKey(url string) (string, error)
	// SURTOrdered reports whether keys produced by ToKey are already in SURT order.
	SURTOrdered() bool
}

// FilterGroup is the evaluation group a record filter reports to.
type FilterGroup interface {
	// SawAdministrative records that administrative filtering was applied.
	SawAdministrative()
	// PassedAdministrative records that at least one record passed.
	PassedAdministrative()
	// Canonicalizer returns the group's canonicalizer override, or nil.
	Canonicalizer() Canonicalizer
}

// RecordFilter decides per record whether it is included.
type RecordFilter interface {
	Decide(rec Record) Verdict
	SetGroup(g FilterGroup)
}

// FilterFactory is the capability a pipeline uses to obtain record filters.
// BuildFilter returns false when no filter can be built, which the
// surrounding chain must interpret itself.
type FilterFactory interface {
	BuildFilter() (RecordFilter, bool)
	Initialize() error
	Shutdown() error
}
