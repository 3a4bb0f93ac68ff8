// Package whitelist holds the immutable SURT-prefix snapshot and the loader
// that builds it from a line-oriented whitelist file.
package whitelist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/wb-access/internal/access/common/clock"
	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/common/surt"
	"github.com/haukened/wb-access/internal/access/domain"
)

// ErrLoad wraps any failure to open or fully read a whitelist file.
var ErrLoad = errors.New("whitelist load failed")

// DefaultFPRate is the Bloom false-positive target used when none is set.
const DefaultFPRate = 0.01

// LoaderOptions configures a Loader. Reader and Canonicalizer are required.
type LoaderOptions struct {
	Reader        LineReader
	Canonicalizer domain.Canonicalizer
	Bloom         BloomFactory // optional
	FPRate        float64
	ModTime       func(path string) int64 // optional, stamps Meta.ModTime
	Clock         clock.Clock
	Logger        log.Logger
}

// Loader turns a whitelist file into a Snapshot.
type Loader struct {
	reader LineReader
	canon  domain.Canonicalizer
	bloom  BloomFactory
	fpRate float64
	mtime  func(string) int64
	clock  clock.Clock
	logger log.Logger
}

// NewLoader constructs a Loader, filling defaults for optional fields.
func NewLoader(opts LoaderOptions) *Loader {
	l := &Loader{
		reader: opts.Reader,
		canon:  opts.Canonicalizer,
		bloom:  opts.Bloom,
		fpRate: opts.FPRate,
		mtime:  opts.ModTime,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if l.fpRate <= 0 || l.fpRate >= 1 {
		l.fpRate = DefaultFPRate
	}
	if l.clock == nil {
		l.clock = clock.RealClock{}
	}
	if l.logger == nil {
		l.logger = log.NewNoopLogger()
	}
	return l
}

// Load reads path and returns a complete Snapshot, or an error wrapping
// ErrLoad. Lines that cannot be canonicalized are skipped; no partial
// Snapshot is ever returned.
//
// Line rules:
//   - surrounding whitespace is trimmed; empty lines and lines starting
//     with '#' are skipped
//   - the line is canonicalized; a SURT-ordered canonicalizer's output, a
//     key starting with '(' or an existing SURT key is used verbatim
//   - anything else becomes its SURT prefix via surt.PrefixKey
func (l *Loader) Load(path string) (*Snapshot, error) {
	if l.reader == nil || l.canon == nil {
		return nil, fmt.Errorf("%w: loader not configured", ErrLoad)
	}
	l.logger.Debug(map[string]any{"source": path}, "whitelist_load_start")

	var mod int64
	if l.mtime != nil {
		mod = l.mtime(path)
	}

	var (
		keys    []string
		skipped int
		lineNum int
	)
	err := l.reader.EachLine(path, func(raw string) {
		lineNum++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		key, err := l.Entry(line)
		if err != nil {
			skipped++
			l.logger.Debug(map[string]any{"line": lineNum, "raw": line, "error": err.Error()}, "whitelist_skip_line")
			return
		}
		keys = append(keys, key)
		l.logger.Debug(map[string]any{"line": lineNum, "key": key}, "whitelist_add")
	})
	if err != nil {
		l.logger.Debug(map[string]any{"source": path, "error": err.Error()}, "whitelist_load_error")
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	snap := NewSnapshot(keys, Meta{Source: path, ModTime: mod, LoadedAt: l.clock.Now(), Skipped: skipped}, l.bloom, l.fpRate)
	l.logger.Debug(map[string]any{"source": path, "count": snap.Len(), "skipped": skipped}, "whitelist_load_done")
	return snap, nil
}

// Entry converts one trimmed, non-empty whitelist line into its SURT key.
func (l *Loader) Entry(line string) (string, error) {
	canonical, err := l.canon.ToKey(line)
	if err != nil {
		return "", err
	}
	if l.canon.SURTOrdered() || strings.HasPrefix(canonical, "(") || surt.IsKey(canonical) {
		return canonical, nil
	}
	return surt.PrefixKey(canonical)
}
