package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the vote core.
type Metrics struct {
	Registry *prometheus.Registry

	VotesCast       *prometheus.CounterVec
	LedgerErrors    *prometheus.CounterVec
	LanguagesAdded  prometheus.Counter
	Resets          prometheus.Counter
	SeededEvents    prometheus.Counter
	SeedDuration    prometheus.Histogram
	TrendDuration   *prometheus.HistogramVec
	TrendSnapshots  *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, so several instances can
// coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		VotesCast: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "langvote",
			Name:      "votes_cast_total",
			Help:      "Votes recorded, by language",
		}, []string{"language"}),
		LedgerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "langvote",
			Name:      "ledger_errors_total",
			Help:      "Failed ledger operations, by operation and kind",
		}, []string{"op", "kind"}),
		LanguagesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "langvote",
			Name:      "languages_added_total",
			Help:      "Languages registered",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "langvote",
			Name:      "resets_total",
			Help:      "Full resets committed",
		}),
		SeededEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: "langvote",
			Name:      "seeded_events_total",
			Help:      "Synthetic vote events persisted by the seed generator",
		}),
		SeedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "langvote",
			Name:      "seed_duration_seconds",
			Help:      "Wall time of a seed transaction",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TrendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "langvote",
			Name:      "trend_duration_seconds",
			Help:      "Trend calculation time, by window",
			Buckets:   prometheus.DefBuckets,
		}, []string{"window"}),
		TrendSnapshots: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "langvote",
			Name:      "trend_snapshots",
			Help:      "Snapshots returned by the last trend calculation, by window",
		}, []string{"window"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "langvote",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
