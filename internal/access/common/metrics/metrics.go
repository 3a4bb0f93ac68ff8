// Package metrics exposes Prometheus collectors for whitelist reloads and
// access decisions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/wb-access/internal/access/domain"
)

const namespace = "wb_access"

// Reload outcomes used as the "result" label.
const (
	ReloadLoaded    = "loaded"
	ReloadUnchanged = "unchanged"
	ReloadFailed    = "failed"
	ReloadMissing   = "missing"
)

// Metrics holds all collectors on a private registry.
type Metrics struct {
	reloads        *prometheus.CounterVec
	entries        prometheus.Gauge
	lastLoad       prometheus.Gauge
	verdicts       *prometheus.CounterVec
	malformed      prometheus.Counter
	memoHits       prometheus.Counter
	filtersBuilt   prometheus.Counter
	filtersRefused prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whitelist_reloads_total",
			Help:      "Whitelist reload checks by result.",
		}, []string{"result"}),

		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "whitelist_entries",
			Help:      "Number of SURT prefixes in the installed whitelist.",
		}),

		lastLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "whitelist_last_load_timestamp_seconds",
			Help:      "Unix time of the last successful whitelist load.",
		}),

		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Access decisions by verdict.",
		}, []string{"verdict"}),

		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_urls_total",
			Help:      "Records excluded because their URL key could not be tokenized.",
		}),

		memoHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_hits_total",
			Help:      "Decisions answered from a filter's last-decision memo.",
		}),

		filtersBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filters_built_total",
			Help:      "Filters handed out by the factory.",
		}),

		filtersRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filters_refused_total",
			Help:      "Filter requests refused because no whitelist was loaded.",
		}),

		registry: reg,
	}

	reg.MustRegister(
		m.reloads,
		m.entries,
		m.lastLoad,
		m.verdicts,
		m.malformed,
		m.memoHits,
		m.filtersBuilt,
		m.filtersRefused,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReload counts one reload check with the given result.
func (m *Metrics) RecordReload(result string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result).Inc()
}

// SetSnapshot publishes the size and load time of a newly installed whitelist.
func (m *Metrics) SetSnapshot(entries int, loadedUnix float64) {
	if m == nil {
		return
	}
	m.entries.Set(float64(entries))
	m.lastLoad.Set(loadedUnix)
}

func (m *Metrics) RecordVerdict(v domain.Verdict) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(v.String()).Inc()
}

func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) RecordMemoHit() {
	if m == nil {
		return
	}
	m.memoHits.Inc()
}

// RecordBuild counts a BuildFilter call; ok is false when it was refused.
func (m *Metrics) RecordBuild(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.filtersBuilt.Inc()
		return
	}
	m.filtersRefused.Inc()
}
