package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Discovery outcome label values
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
)

// Lookup phase label values
const (
	PhaseCoarse     = "coarse"
	PhaseRefine     = "refine"
	PhaseExhaustive = "exhaustive"
)

// Metrics provides observability for the discovery engine
type Metrics struct {
	Discoveries       *prometheus.CounterVec
	RemoteLookups     *prometheus.CounterVec
	CacheHits         prometheus.Counter
	DiscoveryDuration prometheus.Histogram
}

// New registers the discovery collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Discoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_discovery_discoveries_total",
			Help: "Discovery calls by outcome",
		}, []string{"outcome"}),
		RemoteLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_discovery_remote_lookups_total",
			Help: "Remote classifier lookups by sampling phase",
		}, []string{"phase"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "hue_discovery_cache_hits_total",
			Help: "Points resolved from the lookup cache",
		}),
		DiscoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hue_discovery_duration_seconds",
			Help:    "Wall time of discovery calls",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveDiscovery records the outcome and duration of one discovery call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveDiscovery(outcome string, start time.Time) {
	m.Discoveries.WithLabelValues(outcome).Inc()
	m.DiscoveryDuration.Observe(time.Since(start).Seconds())
}

// AddRemoteLookups records n remote lookups dispatched in phase
func (m *Metrics) AddRemoteLookups(phase string, n int) {
	m.RemoteLookups.WithLabelValues(phase).Add(float64(n))
}

// AddCacheHits records n points served from the cache
func (m *Metrics) AddCacheHits(n int) {
	m.CacheHits.Add(float64(n))
}
