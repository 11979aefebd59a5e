package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/attractor"
	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/compaction"
	"github.com/denizumutdereli/graphdb/pkg/embedding"
	"github.com/denizumutdereli/graphdb/pkg/events"
	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hashvec"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
	"github.com/denizumutdereli/graphdb/pkg/inference"
	"github.com/denizumutdereli/graphdb/pkg/ingest"
	"github.com/denizumutdereli/graphdb/pkg/merkle"
	"github.com/denizumutdereli/graphdb/pkg/metrics"
	"github.com/denizumutdereli/graphdb/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// HNSWConfig groups the hnsw.* configuration knobs.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
	ML             float64
	Seed           int64
}

// CompactionConfig groups the compaction.* configuration knobs.
type CompactionConfig struct {
	TombstoneThreshold int
	IntervalMs         int
}

// AttractorConfig groups the attractor.* configuration knobs.
type AttractorConfig struct {
	DecayFactor         float64
	Floor               float64
	BottleneckThreshold float64
}

// InferenceConfig groups the inference.* configuration knobs.
type InferenceConfig struct {
	AbductionPenalty   float64
	SynapseTypeWeights map[graphstore.SynapseType]float64
}

// Config controls how an Engine opens and behaves. Every field has a
// default applied by Open when left zero.
type Config struct {
	DataDir               string
	EmbeddingDim          int
	HNSW                  HNSWConfig
	Compaction            CompactionConfig
	QueueMaxPending       int
	Attractor             AttractorConfig
	Inference             InferenceConfig
	RegistryEnabled       bool
	MaxNeuronContentBytes int64

	// MetricsRegisterer is optional. When set, Open registers a
	// Prometheus Collector against it and the Engine reports through
	// it; when nil (the default, and always in tests), every metrics
	// call is a no-op and nothing reaches for a global registry.
	MetricsRegisterer prometheus.Registerer
}

func (c Config) normalized() Config {
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = 384
	}
	if c.HNSW.M <= 0 {
		c.HNSW.M = 16
	}
	if c.HNSW.EfConstruction <= 0 {
		c.HNSW.EfConstruction = 200
	}
	if c.HNSW.EfSearch <= 0 {
		c.HNSW.EfSearch = 50
	}
	if c.QueueMaxPending <= 0 {
		c.QueueMaxPending = 100
	}
	if c.Compaction.TombstoneThreshold <= 0 {
		c.Compaction.TombstoneThreshold = 50
	}
	if c.Compaction.IntervalMs <= 0 {
		c.Compaction.IntervalMs = 300000
	}
	if c.MaxNeuronContentBytes <= 0 {
		c.MaxNeuronContentBytes = DefaultMaxNeuronContentBytes
	}
	return c
}

// Engine is the top-level façade binding every subsystem: it is the
// one thing a host process opens per data directory and the one thing
// cmd/, pkg/api, and pkg/mcp depend on.
type Engine struct {
	cfg Config

	Chunks     *chunkstore.Store
	Records    *graphstore.Store
	Index      *hnsw.Index
	Graph      *graph.Manager
	Compactor  *compaction.Scheduler
	Inference  *inference.Engine
	Attractors *attractor.Model
	Registry   *registry.Store
	Events     *events.Bus
	Embedder   embedding.Provider
	Ingest     *ingest.Pipeline
	Reinforce  *graphstore.Reinforcer
	Metrics    *metrics.Collector

	closed bool
}

// Open initializes every store and index rooted at cfg.DataDir and
// wires them into one Engine. embedder may be nil; operations that
// need it (Ingest) then fail with ErrEmbeddingUnavailable.
func Open(cfg Config, embedder embedding.Provider) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("core: DataDir required")
	}
	cfg = cfg.normalized()

	chunks, err := chunkstore.Open(chunkstore.Config{DataDir: filepath.Join(cfg.DataDir, "chunks")})
	if err != nil {
		return nil, fmt.Errorf("core: open chunk store: %w", err)
	}

	records, err := graphstore.Open(graphstore.Config{
		DataDir:         filepath.Join(cfg.DataDir, "neurons"),
		EmbeddingDim:    cfg.EmbeddingDim,
		QueueMaxPending: cfg.QueueMaxPending,
	})
	if err != nil {
		chunks.Close()
		return nil, fmt.Errorf("core: open graph store: %w", err)
	}

	index := hnsw.New(hnsw.Config{
		M:              cfg.HNSW.M,
		EfConstruction: cfg.HNSW.EfConstruction,
		EfSearch:       cfg.HNSW.EfSearch,
		ML:             cfg.HNSW.ML,
		Seed:           cfg.HNSW.Seed,
	})

	compactor := compaction.New(compaction.Config{
		TombstoneThreshold: cfg.Compaction.TombstoneThreshold,
		Interval:           time.Duration(cfg.Compaction.IntervalMs) * time.Millisecond,
	}, index, chunks, records)

	gm := graph.New(graph.Config{EmbeddingDim: cfg.EmbeddingDim}, records, index, chunks, compactor)

	// The HNSW index is an in-memory cache; its authority is the
	// record store. Rebuild it from whatever neurons survived the
	// previous process.
	if err := gm.RebuildIndex(); err != nil {
		records.Close()
		chunks.Close()
		return nil, fmt.Errorf("core: rebuild index: %w", err)
	}

	infEngine := inference.New(gm, inference.Config{
		AbductionPenalty: cfg.Inference.AbductionPenalty,
		TypeWeights:      cfg.Inference.SynapseTypeWeights,
	})

	attrModel := attractor.New(attractor.Config{
		DecayFactor:         cfg.Attractor.DecayFactor,
		FloorStrength:       cfg.Attractor.Floor,
		BottleneckThreshold: cfg.Attractor.BottleneckThreshold,
	}, gm)

	reg, err := registry.Open(filepath.Join(cfg.DataDir, "registry"), cfg.RegistryEnabled)
	if err != nil {
		records.Close()
		chunks.Close()
		return nil, fmt.Errorf("core: open registry: %w", err)
	}

	var collector *metrics.Collector
	if cfg.MetricsRegisterer != nil {
		collector, err = metrics.New(cfg.MetricsRegisterer)
		if err != nil {
			records.Close()
			chunks.Close()
			return nil, fmt.Errorf("core: register metrics: %w", err)
		}
	}

	bus := events.New()
	e := &Engine{
		cfg:        cfg,
		Chunks:     chunks,
		Records:    records,
		Index:      index,
		Graph:      gm,
		Compactor:  compactor,
		Inference:  infEngine,
		Attractors: attrModel,
		Registry:   reg,
		Events:     bus,
		Embedder:   embedder,
		Reinforce: graphstore.NewReinforcer(records, graphstore.ReinforcerConfig{
			OnSynapseUpdated: func(id graphstore.SynapseID, _ float64) {
				bus.Publish(events.SynapseUpdated, id)
			},
		}),
		Metrics: collector,
	}
	if embedder != nil {
		e.Ingest = &ingest.Pipeline{Chunks: chunks, Graph: gm, Embedder: embedder}
	}

	compactor.Start()
	return e, nil
}

// Close stops the background compaction timer and releases every
// underlying store handle. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.Compactor.Stop()
	if err := e.Records.Close(); err != nil {
		return err
	}
	return e.Chunks.Close()
}

// IngestText runs the full text-to-neuron pipeline (chunker ->
// chunkstore -> merkle -> graphstore -> hnsw) and publishes a
// neuron:created event on success.
func (e *Engine) IngestText(ctx context.Context, text, sourceType string, tags []string) (*graphstore.Neuron, error) {
	if e.Ingest == nil {
		return nil, ErrEmbeddingUnavailable
	}
	if err := validateContent(text, e.cfg.MaxNeuronContentBytes); err != nil {
		return nil, err
	}
	n, err := e.Ingest.Ingest(ctx, ingest.Request{Text: text, SourceType: sourceType, Tags: tags})
	if err != nil {
		return nil, err
	}
	e.Events.Publish(events.NeuronCreated, n)
	e.Events.Publish(events.MerkleRootChg, n.MerkleRoot)
	e.Metrics.NeuronIngested()
	return n, nil
}

// AddSynapse creates a synapse between two existing neurons and
// publishes a synapse:formed event.
func (e *Engine) AddSynapse(sy *graphstore.Synapse) error {
	if err := e.Graph.AddSynapse(sy); err != nil {
		return err
	}
	e.Events.Publish(events.SynapseFormed, sy)
	e.Metrics.SynapseFormed()
	return nil
}

// RemoveSynapse removes a synapse and publishes a synapse:removed event.
func (e *Engine) RemoveSynapse(id graphstore.SynapseID) error {
	if err := e.Graph.RemoveSynapse(id); err != nil {
		return err
	}
	e.Events.Publish(events.SynapseRemoved, id)
	e.Metrics.SynapseRemoved()
	return nil
}

// DeleteNeuron removes a neuron (tombstone + KV delete + chunk
// refcount decrement) and publishes a neuron:deleted event.
func (e *Engine) DeleteNeuron(id graphstore.NeuronID) error {
	if err := e.Graph.DeleteNeuron(id); err != nil {
		return err
	}
	e.Events.Publish(events.NeuronDeleted, id)
	e.Metrics.NeuronDeleted()
	return nil
}

// Fire records neuron id as having fired: it bumps access bookkeeping
// and runs one Hebbian co-activation pass, strengthening or forming
// synapses against any other neuron that fired within the
// reinforcer's co-activation window.
func (e *Engine) Fire(id graphstore.NeuronID) error {
	if err := e.Records.TouchAccess(id); err != nil {
		return err
	}
	e.Events.Publish(events.NeuronUpdated, id)
	return e.Reinforce.OnNeuronFired(id)
}

// VerifyReport is the result of VerifyNeuron.
type VerifyReport struct {
	MerkleValid bool
	ChunksValid bool
	Missing     []hashvec.Hash
	Corrupted   []hashvec.Hash
}

// VerifyNeuron re-reads every chunk a neuron references (each read
// re-hashes the bytes against the key) and recomputes the Merkle root
// from the stored chunk-hash order. Publishes merkle:verified with
// the report. Returns nil, nil when the neuron does not exist.
func (e *Engine) VerifyNeuron(id graphstore.NeuronID) (*VerifyReport, error) {
	n, err := e.Records.GetNeuron(id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}

	report := &VerifyReport{ChunksValid: true}
	for _, h := range n.ChunkHashes {
		c, err := e.Chunks.Get(h)
		if errors.Is(err, chunkstore.ErrIntegrity) {
			report.ChunksValid = false
			report.Corrupted = append(report.Corrupted, h)
			continue
		}
		if err != nil {
			return nil, err
		}
		if c == nil {
			report.ChunksValid = false
			report.Missing = append(report.Missing, h)
		}
	}
	report.MerkleValid = merkle.Root(n.ChunkHashes) == n.MerkleRoot

	e.Events.Publish(events.MerkleVerified, report)
	return report, nil
}

// CreateAttractor declares a new goal state and publishes
// attractor:created.
func (e *Engine) CreateAttractor(id, name, description string, embedding []float32, strength float64, priority int, deadline *time.Time) *attractor.Attractor {
	a := e.Attractors.CreateAttractor(id, name, description, embedding, strength, priority, deadline)
	e.Events.Publish(events.AttractorCreate, a)
	return a
}

// FindPathToAttractor searches for a goal path and publishes
// attractor:activated when one is found.
func (e *Engine) FindPathToAttractor(start graphstore.NeuronID, attractorID string, maxHops int) (attractor.Path, bool) {
	path, found := e.Attractors.FindPathToAttractor(start, attractorID, maxHops)
	if found {
		e.Events.Publish(events.AttractorActive, attractorID)
	}
	return path, found
}

// DecayAttractors runs one decay tick and publishes attractor:decayed
// for every attractor removed by falling below the floor.
func (e *Engine) DecayAttractors() []string {
	removed := e.Attractors.DecayAttractors()
	for _, id := range removed {
		e.Events.Publish(events.AttractorDecay, id)
	}
	e.Metrics.AttractorsDecayed(len(removed))
	return removed
}

