// Package metrics exposes the engine's optional Prometheus
// instrumentation. The engine only ever accepts a registerer handle
// as a constructor parameter and never reaches for a global registry,
// so tests stay independent of process-wide state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every counter/gauge the engine updates. A nil
// *Collector is valid everywhere it's used: every method is a no-op on
// a nil receiver, so callers never need a liveness check.
type Collector struct {
	neuronsIngested   prometheus.Counter
	neuronsDeleted    prometheus.Counter
	synapsesFormed    prometheus.Counter
	synapsesRemoved   prometheus.Counter
	searchesRun       prometheus.Counter
	inferencesRun     prometheus.Counter
	attractorsDecayed prometheus.Counter
	compactionsRun    prometheus.Counter
	tombstoneGauge    prometheus.Gauge
}

// New builds a Collector and registers every metric against reg.
// Registration failures (e.g. a duplicate registration in a test that
// reuses one *prometheus.Registry) are returned unchanged.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		neuronsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_neurons_ingested_total",
			Help: "Number of neurons successfully ingested.",
		}),
		neuronsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_neurons_deleted_total",
			Help: "Number of neurons deleted.",
		}),
		synapsesFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_synapses_formed_total",
			Help: "Number of synapses created.",
		}),
		synapsesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_synapses_removed_total",
			Help: "Number of synapses removed.",
		}),
		searchesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_searches_total",
			Help: "Number of HNSW similarity searches run.",
		}),
		inferencesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_inferences_total",
			Help: "Number of forward/backward inference queries run.",
		}),
		attractorsDecayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_attractors_decayed_total",
			Help: "Number of attractors removed by decay falling below the floor.",
		}),
		compactionsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_compactions_total",
			Help: "Number of compaction sweeps run.",
		}),
		tombstoneGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphdb_hnsw_tombstones",
			Help: "Current tombstoned node count in the HNSW index.",
		}),
	}

	collectors := []prometheus.Collector{
		c.neuronsIngested, c.neuronsDeleted, c.synapsesFormed, c.synapsesRemoved,
		c.searchesRun, c.inferencesRun, c.attractorsDecayed, c.compactionsRun, c.tombstoneGauge,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) NeuronIngested() {
	if c == nil {
		return
	}
	c.neuronsIngested.Inc()
}

func (c *Collector) NeuronDeleted() {
	if c == nil {
		return
	}
	c.neuronsDeleted.Inc()
}

func (c *Collector) SynapseFormed() {
	if c == nil {
		return
	}
	c.synapsesFormed.Inc()
}

func (c *Collector) SynapseRemoved() {
	if c == nil {
		return
	}
	c.synapsesRemoved.Inc()
}

func (c *Collector) SearchRun() {
	if c == nil {
		return
	}
	c.searchesRun.Inc()
}

func (c *Collector) InferenceRun() {
	if c == nil {
		return
	}
	c.inferencesRun.Inc()
}

func (c *Collector) AttractorsDecayed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.attractorsDecayed.Add(float64(n))
}

func (c *Collector) CompactionRun() {
	if c == nil {
		return
	}
	c.compactionsRun.Inc()
}

func (c *Collector) SetTombstoneCount(n int) {
	if c == nil {
		return
	}
	c.tombstoneGauge.Set(float64(n))
}
