package scanner

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an opt-in prometheus collector for scan activity, supplementing
// spec.md per SPEC_FULL.md §6 (the distilled spec has no observability
// surface; this gives the teacher's dependency on prometheus/client_golang
// a concrete home in the domain rather than dropping it).
type Metrics struct {
	scansTotal        prometheus.Counter
	scansChangedTotal prometheus.Counter
	newTxsTotal       prometheus.Counter
}

// NewMetrics constructs a Metrics and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwk",
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total number of full_scan invocations.",
		}),
		scansChangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwk",
			Subsystem: "scanner",
			Name:      "scans_changed_total",
			Help:      "Total number of scans that produced a non-empty Update.",
		}),
		newTxsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwk",
			Subsystem: "scanner",
			Name:      "new_txs_total",
			Help:      "Total number of new transactions discovered across all scans.",
		}),
	}
	reg.MustRegister(m.scansTotal, m.scansChangedTotal, m.newTxsTotal)
	return m
}

func (m *Metrics) observeScan(changed bool, newTxCount int) {
	m.scansTotal.Inc()
	if changed {
		m.scansChangedTotal.Inc()
	}
	m.newTxsTotal.Add(float64(newTxCount))
}
