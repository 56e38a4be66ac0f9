package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Statement metrics
	StatementsTotal   *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec

	// Search metrics
	SearchesTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec

	// Full-text rewrite metrics
	RewritesTotal          *prometheus.CounterVec
	SpliceCacheHitsTotal   prometheus.Counter
	SpliceCacheMissesTotal prometheus.Counter
}

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		StatementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qsearch_statements_total",
				Help: "Total number of executed SQL statements",
			},
			[]string{"dialect", "status"},
		),
		StatementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qsearch_statement_duration_seconds",
				Help:    "SQL statement duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dialect"},
		),

		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qsearch_searches_total",
				Help: "Total number of searches",
			},
			[]string{"provider", "status"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qsearch_search_duration_seconds",
				Help:    "Search duration in seconds, counts and listing included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		RewritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qsearch_fts_rewrites_total",
				Help: "Total number of full-text statement rewrites",
			},
			[]string{"stage", "status"},
		),
		SpliceCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qsearch_fts_splice_cache_hits_total",
				Help: "Full-text splices served from the cache",
			},
		),
		SpliceCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qsearch_fts_splice_cache_misses_total",
				Help: "Full-text splices computed from rendered text",
			},
		),
	}

	registry.MustRegister(
		m.StatementsTotal,
		m.StatementDuration,
		m.SearchesTotal,
		m.SearchDuration,
		m.RewritesTotal,
		m.SpliceCacheHitsTotal,
		m.SpliceCacheMissesTotal,
	)
	return m
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ObserveStatement records one executed statement.
func (m *Metrics) ObserveStatement(dialect string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StatementsTotal.WithLabelValues(dialect, status(err)).Inc()
	m.StatementDuration.WithLabelValues(dialect).Observe(d.Seconds())
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(provider, status(err)).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveRewrite records one full-text rewrite at stage ("where" or
// "pagination").
func (m *Metrics) ObserveRewrite(stage string, err error) {
	if m == nil {
		return
	}
	m.RewritesTotal.WithLabelValues(stage, status(err)).Inc()
}

// ObserveSpliceCache records a splice cache lookup.
func (m *Metrics) ObserveSpliceCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SpliceCacheHitsTotal.Inc()
		return
	}
	m.SpliceCacheMissesTotal.Inc()
}
