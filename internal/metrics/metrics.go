// Package metrics exposes Prometheus collectors for the ledger engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scopes used as the "scope" label.
const (
	ScopePair  = "pair"
	ScopeGroup = "group"
)

// Metrics groups every collector. A nil *Metrics records nothing.
type Metrics struct {
	recomputations    *prometheus.CounterVec
	cacheDrift        *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	transactionsSaved prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recomputations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settleup",
			Name:      "balance_recomputations_total",
			Help:      "Full balance recomputations from the ledger.",
		}, []string{"scope"}),
		cacheDrift: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settleup",
			Name:      "balance_cache_drift_total",
			Help:      "Cached balances that differed from a full recomputation.",
		}, []string{"scope"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settleup",
			Name:      "settlement_transitions_total",
			Help:      "Settlement status transitions by resulting status.",
		}, []string{"status"}),
		transactionsSaved: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "settleup",
			Name:      "simplification_transactions_saved",
			Help:      "Transfers removed by debt simplification.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

func (m *Metrics) Recomputed(scope string) {
	if m == nil {
		return
	}
	m.recomputations.WithLabelValues(scope).Inc()
}

func (m *Metrics) Drifted(scope string) {
	if m == nil {
		return
	}
	m.cacheDrift.WithLabelValues(scope).Inc()
}

func (m *Metrics) Transitioned(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Simplified(saved int) {
	if m == nil {
		return
	}
	m.transactionsSaved.Observe(float64(saved))
}
