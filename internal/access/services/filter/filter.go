// Package filter turns the installed whitelist into per-record access
// decisions and exposes the factory a replay pipeline plugs in.
package filter

import (
	"errors"
	"iter"

	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/common/metrics"
	"github.com/haukened/wb-access/internal/access/common/surt"
	"github.com/haukened/wb-access/internal/access/domain"
	"github.com/haukened/wb-access/internal/access/repos/whitelist"
	"github.com/haukened/wb-access/internal/access/repos/whitelist/memo"
)

// SnapshotSource yields the whitelist currently in force, or nil.
type SnapshotSource interface {
	Current() *whitelist.Snapshot
}

// Stats are cumulative counters for one Filter.
type Stats struct {
	MemoEntries   int
	MemoHits      uint64
	MemoMisses    uint64
	MemoEvictions uint64
	Included      uint64
	Excluded      uint64
}

// Options configures a Filter. Source and Canonicalizer are required.
type Options struct {
	Source        SnapshotSource
	Canonicalizer domain.Canonicalizer
	Metrics       *metrics.Metrics
	Logger        log.Logger
}

// Filter decides whether records are covered by the whitelist. A Filter
// keeps per-instance state and must be driven by one goroutine at a time;
// build one Filter per caller.
type Filter struct {
	source      SnapshotSource
	surtOrdered bool
	group       domain.FilterGroup
	last        memo.Memo

	sawNotified    bool
	passedNotified bool

	included uint64
	excluded uint64

	terms   func(url string, surtOrdered bool) (iter.Seq[string], error)
	metrics *metrics.Metrics
	logger  log.Logger
}

// New creates a Filter reading snapshots from opts.Source.
func New(opts Options) *Filter {
	f := &Filter{
		source:  opts.Source,
		last:    memo.Last(),
		terms:   surt.Terms,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if opts.Canonicalizer != nil {
		f.surtOrdered = opts.Canonicalizer.SURTOrdered()
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f
}

// SetGroup attaches the evaluation group. A group canonicalizer overrides
// the default one for the rest of this filter's life; a remembered verdict
// reached under the other key ordering is dropped.
func (f *Filter) SetGroup(g domain.FilterGroup) {
	f.group = g
	if g == nil {
		return
	}
	if c := g.Canonicalizer(); c != nil {
		if ordered := c.SURTOrdered(); ordered != f.surtOrdered {
			f.surtOrdered = ordered
			f.last.Purge()
		}
	}
}

// Decide returns Include when some search term of the record's URL key is
// a whitelist entry, and Exclude otherwise. A repeat of the previous key
// is answered from memory.
func (f *Filter) Decide(rec domain.Record) domain.Verdict {
	if !f.sawNotified {
		if f.group != nil {
			f.group.SawAdministrative()
		}
		f.sawNotified = true
	}

	key := rec.URLKey()
	if v, ok := f.last.Get(key); ok {
		f.metrics.RecordMemoHit()
		f.count(v)
		return v
	}

	v := f.evaluate(key)
	f.last.Put(key, v)
	f.count(v)
	if v.IsIncluded() && !f.passedNotified {
		if f.group != nil {
			f.group.PassedAdministrative()
		}
		f.passedNotified = true
	}
	return v
}

func (f *Filter) evaluate(key string) domain.Verdict {
	snap := f.source.Current()
	if snap == nil {
		return domain.Exclude
	}
	seq, err := f.terms(key, f.surtOrdered)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedURL) {
			f.metrics.RecordMalformed()
		}
		f.logger.Warn(map[string]any{"url": key, "error": err.Error()}, "Cannot derive search terms")
		return domain.Exclude
	}
	for term := range seq {
		f.logger.Debug(map[string]any{"term": term}, "whitelist_check")
		if snap.Contains(term) {
			f.logger.Info(map[string]any{"term": term, "url": key}, "Included by whitelist")
			return domain.Include
		}
	}
	return domain.Exclude
}

func (f *Filter) count(v domain.Verdict) {
	if v == domain.Include {
		f.included++
	} else {
		f.excluded++
	}
	f.metrics.RecordVerdict(v)
}

// Stats returns the filter's counters.
func (f *Filter) Stats() Stats {
	hits, misses, evictions := f.last.Stats()
	return Stats{
		MemoEntries:   f.last.Len(),
		MemoHits:      hits,
		MemoMisses:    misses,
		MemoEvictions: evictions,
		Included:      f.included,
		Excluded:      f.excluded,
	}
}

var _ domain.RecordFilter = (*Filter)(nil)
