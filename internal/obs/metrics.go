package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/histogram the pipeline updates. It is wired
// once at startup and passed as a *Metrics pointer down through the engine, optimizer, and fork-cache backend.
type Metrics struct {
	TxSeen           prometheus.Counter
	TxFiltered       prometheus.Counter
	OpportunitiesOpt prometheus.Counter
	BundlesSubmitted prometheus.Counter
	SalmonellaHits   prometheus.Counter
	SimDuration      prometheus.Histogram
	ForkCacheHits    prometheus.Counter
	ForkCacheMisses  prometheus.Counter
}

// NewMetrics registers the searcher's Prometheus collectors against reg. A
// caller that does not want metrics (e.g. unit tests) can pass a fresh
// prometheus.NewRegistry() and discard it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TxSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Name: "pending_tx_seen_total",
			Help: "Pending transactions observed on the mempool collector.",
		}),
		TxFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Name: "tx_filtered_total",
			Help: "Pending transactions whose filter and pipeline run finished without error.",
		}),
		OpportunitiesOpt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Name: "opportunities_optimized_total",
			Help: "Opportunities for which the optimizer returned non-zero revenue.",
		}),
		BundlesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Name: "bundles_submitted_total",
			Help: "Bundles handed to the relay fan-out.",
		}),
		SalmonellaHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Name: "salmonella_detected_total",
			Help: "Opportunities rejected by the safety inspector.",
		}),
		SimDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sando", Name: "simulation_duration_seconds",
			Help:    "Wall-clock duration of a single grid-search candidate simulation.",
			Buckets: prometheus.DefBuckets,
		}),
		ForkCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Subsystem: "forkcache", Name: "hits_total",
			Help: "Fork-cache reads served from the in-memory cache.",
		}),
		ForkCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sando", Subsystem: "forkcache", Name: "misses_total",
			Help: "Fork-cache reads that required an upstream RPC fetch.",
		}),
	}
	reg.MustRegister(m.TxSeen, m.TxFiltered, m.OpportunitiesOpt, m.BundlesSubmitted,
		m.SalmonellaHits, m.SimDuration, m.ForkCacheHits, m.ForkCacheMisses)
	return m
}
