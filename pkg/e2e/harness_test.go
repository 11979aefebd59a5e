package e2e

import (
	"testing"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/attractor"
	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/compaction"
	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
	"github.com/denizumutdereli/graphdb/pkg/inference"
)

// stack wires the same components pkg/core.Engine wires, at the same
// seam, so scenario tests can drive precisely-shaped neurons and
// synapses without going through the embedding pipeline.
type stack struct {
	Chunks     *chunkstore.Store
	Records    *graphstore.Store
	Index      *hnsw.Index
	Graph      *graph.Manager
	Compactor  *compaction.Scheduler
	Inference  *inference.Engine
	Attractors *attractor.Model
}

func newStack(t *testing.T, embeddingDim int) *stack {
	t.Helper()
	dir := t.TempDir()

	chunks, err := chunkstore.Open(chunkstore.Config{DataDir: dir + "/chunks"})
	if err != nil {
		t.Fatalf("chunkstore.Open: %v", err)
	}
	t.Cleanup(func() { chunks.Close() })

	records, err := graphstore.Open(graphstore.Config{DataDir: dir + "/neurons", EmbeddingDim: embeddingDim})
	if err != nil {
		t.Fatalf("graphstore.Open: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	index := hnsw.New(hnsw.DefaultConfig())
	compactor := compaction.New(compaction.Config{TombstoneThreshold: 1 << 30, Interval: time.Hour}, index, chunks, records)

	gm := graph.New(graph.Config{EmbeddingDim: embeddingDim}, records, index, chunks, compactor)

	infEngine := inference.New(gm, inference.Config{})
	attrModel := attractor.New(attractor.Config{}, gm)

	return &stack{
		Chunks:     chunks,
		Records:    records,
		Index:      index,
		Graph:      gm,
		Compactor:  compactor,
		Inference:  infEngine,
		Attractors: attrModel,
	}
}

// newNeuron builds a bare neuron with no chunks, ready for InsertNeuron.
func newNeuron(embedding []float32, tags ...string) *graphstore.Neuron {
	return &graphstore.Neuron{
		ID:        graphstore.NewNeuronID(),
		Embedding: embedding,
		Metadata: graphstore.NeuronMetadata{
			CreatedAt:  time.Now().UTC(),
			SourceType: "test",
			Tags:       tags,
		},
	}
}

func vec(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}
