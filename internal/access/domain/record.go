package domain

import (
	"fmt"
	"strings"
)

// Record is one archived capture being filtered for display. Only its
// canonical URL key matters to access control.
type Record interface {
	URLKey() string
}

// Capture is a minimal Record carrying a canonical URL key and the
// capture metadata the replay pipeline prints alongside a verdict.
type Capture struct {
	Key         string // canonical URL key, e.g. "com,example)/page" or "example.com/page"
	OriginalURL string // URL as it was crawled
	Timestamp   string // 14-digit capture timestamp
}

// URLKey returns the canonical URL key of the capture.
func (c Capture) URLKey() string { return c.Key }

// NewCapture builds a Capture from a canonical key and validates it.
func NewCapture(key, originalURL, timestamp string) (Capture, error) {
	c := Capture{
		Key:         strings.TrimSpace(key),
		OriginalURL: strings.TrimSpace(originalURL),
		Timestamp:   strings.TrimSpace(timestamp),
	}
	if c.Key == "" {
		return Capture{}, fmt.Errorf("capture url key must not be empty")
	}
	return c, nil
}
