package secrets

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded in dsconf_secret_lookups_total.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeDefault = "default"
)

var (
	secretLookupsTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// InitMetrics registers the secret lookup metrics with the default
// Prometheus registry. Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		secretLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsconf_secret_lookups_total",
				Help: "Total number of secret lookups by store and outcome",
			},
			[]string{"store", "outcome"},
		)
		metricsRegistered.Store(true)
	})
}

// IsMetricsRegistered reports whether InitMetrics has run.
func IsMetricsRegistered() bool {
	return metricsRegistered.Load()
}

// GetSecretLookupsTotal returns the lookup counter, or nil before
// InitMetrics.
func GetSecretLookupsTotal() *prometheus.CounterVec {
	return secretLookupsTotal
}

func recordLookup(store, outcome string) {
	InitMetrics()
	secretLookupsTotal.WithLabelValues(store, outcome).Inc()
}
