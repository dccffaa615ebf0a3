package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for reconciliation passes.
type Metrics struct {
	duration *prometheus.HistogramVec
	lookups  *prometheus.CounterVec
	items    *prometheus.GaugeVec
	amount   *prometheus.GaugeVec
}

// NewMetrics registers the ledger collectors. A nil registerer yields a
// Metrics that records nothing.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return nil
	}
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obligations_ledger_reconcile_duration_seconds",
			Help:    "Duration of ledger reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"filter"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obligations_ledger_cache_lookups_total",
			Help: "Ledger cache lookups by result.",
		}, []string{"result"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "obligations_ledger_items",
			Help: "Ledger lines per bucket in the latest pass.",
		}, []string{"bucket", "filter"}),
		amount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "obligations_ledger_amount",
			Help: "Ledger amount per bucket in the latest pass.",
		}, []string{"bucket", "filter"}),
	}
	registerer.MustRegister(m.duration, m.lookups, m.items, m.amount)
	return m
}

func (m *Metrics) observePass(filter string, started time.Time, res Result) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(filter).Observe(time.Since(started).Seconds())
	totals := res.Totals()
	for bucket, total := range map[Bucket]BucketTotal{
		BucketReceivable: totals.Receivable,
		BucketProjected:  totals.Projected,
		BucketCollected:  totals.Collected,
	} {
		m.items.WithLabelValues(string(bucket), filter).Set(float64(total.Count))
		m.amount.WithLabelValues(string(bucket), filter).Set(total.Amount.InexactFloat64())
	}
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}
