// Package metrics exposes block import outcomes as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "jamcore"
	kindLabel = "kind"
)

// Metrics holds the importer collectors. A nil *Metrics records nothing.
type Metrics struct {
	imported prometheus.Counter
	rejected *prometheus.CounterVec
	lastSlot prometheus.Gauge
	coretime prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_imported_total",
			Help:      "number of blocks accepted by the importer",
		}),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_rejected_total",
				Help:      "number of blocks rejected by the importer, by error kind",
			},
			[]string{kindLabel},
		),
		lastSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_slot",
			Help:      "slot of the last imported block",
		}),
		coretime: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coretime_consumed_total",
			Help:      "CoreTime consumed by imported blocks",
		}),
	}

	for _, c := range []prometheus.Collector{m.imported, m.rejected, m.lastSlot, m.coretime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BlockImported records an accepted block and the CoreTime it consumed
func (m *Metrics) BlockImported(slot uint32, consumed uint64) {
	if m == nil {
		return
	}
	m.imported.Inc()
	m.lastSlot.Set(float64(slot))
	m.coretime.Add(float64(consumed))
}

// BlockRejected records a rejected block under its error kind
func (m *Metrics) BlockRejected(kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind).Inc()
}

// WriteTextfile writes everything gathered by g to path in the text exposition format
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
