package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vesting module.
type Metrics struct {
	// Admissions by path ("owner", "deposit")
	GrantsCreated *prometheus.CounterVec

	GrantsRevoked prometheus.Counter

	// Unlock attempts by outcome ("unlocked", "noop", "not_found")
	UnlockOutcomes *prometheus.CounterVec

	// Beneficiaries per batch call
	BatchSize prometheus.Histogram

	// Aggregate unpaid remainder across live grants
	TotalReserved prometheus.Gauge
}

// New creates a Metrics instance with all vesting module metrics registered.
func New() *Metrics {
	return &Metrics{
		GrantsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustee_grants_created_total",
			Help: "Total grants admitted, by authorization path",
		}, []string{"path"}),

		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustee_grants_revoked_total",
			Help: "Total grants revoked by the owner",
		}),

		UnlockOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustee_unlock_outcomes_total",
			Help: "Unlock attempts by outcome",
		}, []string{"outcome"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustee_batch_unlock_size",
			Help:    "Number of beneficiaries per batch unlock call",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		TotalReserved: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trustee_total_reserved",
			Help: "Aggregate unpaid remainder backing live grants, in base units",
		}),
	}
}

// IncGrantsCreated records an admission through the given path.
func (m *Metrics) IncGrantsCreated(path string) {
	if m != nil {
		m.GrantsCreated.WithLabelValues(path).Inc()
	}
}

// IncGrantsRevoked records a revocation.
func (m *Metrics) IncGrantsRevoked() {
	if m != nil {
		m.GrantsRevoked.Inc()
	}
}

// IncUnlockOutcome records one per-beneficiary unlock outcome.
func (m *Metrics) IncUnlockOutcome(outcome string) {
	if m != nil {
		m.UnlockOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveBatchSize records the size of a batch unlock call.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// SetTotalReserved updates the reserved gauge from its decimal string form.
// Precision loss past float64 is acceptable for a gauge.
func (m *Metrics) SetTotalReserved(dec string) {
	if m == nil {
		return
	}
	if v, err := strconv.ParseFloat(dec, 64); err == nil {
		m.TotalReserved.Set(v)
	}
}
