package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for processed targets.
const (
	OutcomeTagged      = "tagged"
	OutcomeNoLocation  = "no_location"
	OutcomeWriteFailed = "write_failed"
	OutcomeError       = "error"
)

type Recorder interface {
	IncTargets(outcome string)
	IncProvider(provider string)
	ObserveResolveDuration(d time.Duration)
	IncCacheHits()
	IncCacheMisses()
	SetReferenceEntries(n int)
}

// Metrics holds the batch collectors. Each instance owns its registry so that
// tests and repeated runs do not collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	targets          *prometheus.CounterVec
	providers        *prometheus.CounterVec
	resolveDuration  prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	referenceEntries prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geotagger_targets_total",
			Help: "Target photos processed, by outcome",
		}, []string{"outcome"}),
		providers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geotagger_locations_total",
			Help: "Positions found, by provider",
		}, []string{"provider"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geotagger_locate_duration_seconds",
			Help:    "Time spent locating one target photo",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geotagger_gps_cache_hits_total",
			Help: "Reference GPS lookups served from cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geotagger_gps_cache_misses_total",
			Help: "Reference GPS lookups that decoded the file",
		}),
		referenceEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geotagger_reference_entries",
			Help: "Timestamped photos in the reference index",
		}),
	}
	m.Registry.MustRegister(
		m.targets,
		m.providers,
		m.resolveDuration,
		m.cacheHits,
		m.cacheMisses,
		m.referenceEntries,
	)
	return m
}

func (m *Metrics) IncTargets(outcome string) {
	m.targets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncProvider(provider string) {
	m.providers.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveResolveDuration(d time.Duration) {
	m.resolveDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *Metrics) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *Metrics) SetReferenceEntries(n int) {
	m.referenceEntries.Set(float64(n))
}

// Noop discards everything.
type Noop struct{}

func (Noop) IncTargets(string)                    {}
func (Noop) IncProvider(string)                   {}
func (Noop) ObserveResolveDuration(time.Duration) {}
func (Noop) IncCacheHits()                        {}
func (Noop) IncCacheMisses()                      {}
func (Noop) SetReferenceEntries(int)              {}
