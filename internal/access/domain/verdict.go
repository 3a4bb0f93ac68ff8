package domain

import "fmt"

// Verdict is the outcome of evaluating one capture record against the
// whitelist. The zero value is Exclude so an unset verdict fails closed.
type Verdict uint8

const (
	// Exclude removes the record from the replay results.
	Exclude Verdict = iota
	// Include lets the record through administrative filtering.
	Include
)

// String returns a stable string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case Exclude:
		return "EXCLUDE"
	case Include:
		return "INCLUDE"
	default:
		return fmt.Sprintf("Verdict(%d)", v)
	}
}

// IsIncluded is a convenience accessor.
func (v Verdict) IsIncluded() bool { return v == Include }
