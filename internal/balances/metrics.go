package balances

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu          sync.Mutex
	metricsInitialized bool

	cacheHitCounter    *prometheus.CounterVec
	cacheMissCounter   *prometheus.CounterVec
	buildHistogram     *prometheus.HistogramVec
	metricsSetupFailed error
)

// SetupMetrics registers the balance cache metrics once. Later calls return
// the first outcome.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInitialized {
		return metricsSetupFailed
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_balance_cache_hits_total",
		Help: "Number of balance reads served from cache.",
	}, []string{"report"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_balance_cache_miss_total",
		Help: "Number of balance reads computed from the ledger.",
	}, []string{"report"})
	builds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pocketledger_balance_build_duration_seconds",
		Help:    "Duration required to compute balance reports.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})

	cacheHitCounter = register(reg, hits)
	cacheMissCounter = register(reg, misses)
	if err := reg.Register(builds); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				builds = existing
			} else {
				metricsSetupFailed = fmt.Errorf("balance metrics: unexpected collector type %T", already.ExistingCollector)
			}
		} else {
			metricsSetupFailed = err
			builds = nil
		}
	}
	buildHistogram = builds
	metricsInitialized = true
	return metricsSetupFailed
}

func register(reg prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
			metricsSetupFailed = fmt.Errorf("balance metrics: unexpected collector type %T", already.ExistingCollector)
			return nil
		}
		metricsSetupFailed = err
		return nil
	}
	return vec
}

func recordCacheResult(report string, hit bool) {
	vec := cacheMissCounter
	if hit {
		vec = cacheHitCounter
	}
	if vec == nil {
		return
	}
	vec.WithLabelValues(report).Inc()
}

func observeBuildDuration(report string, d time.Duration) {
	if buildHistogram == nil {
		return
	}
	buildHistogram.WithLabelValues(report).Observe(d.Seconds())
}
