package attractor

import (
	"testing"

	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

func newTestModel(t *testing.T) (*Model, *graph.Manager) {
	t.Helper()
	gs, err := graphstore.Open(graphstore.Config{DataDir: t.TempDir(), EmbeddingDim: 3})
	if err != nil {
		t.Fatalf("graphstore.Open() error = %v", err)
	}
	t.Cleanup(func() { gs.Close() })

	cs, err := chunkstore.Open(chunkstore.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("chunkstore.Open() error = %v", err)
	}
	t.Cleanup(func() { cs.Close() })

	idx := hnsw.New(hnsw.DefaultConfig())
	m := graph.New(graph.Config{EmbeddingDim: 3}, gs, idx, cs, nil)
	return New(Config{}, m), m
}

func TestDecayAttractorsRemovesBelowFloor(t *testing.T) {
	mdl, _ := newTestModel(t)
	mdl.CreateAttractor("weak", "weak", "", []float32{1, 0, 0}, 0.011, 5, nil)
	mdl.CreateAttractor("strong", "strong", "", []float32{1, 0, 0}, 0.9, 5, nil)

	var removed []string
	for i := 0; i < 10; i++ { // 0.011 * 0.99^10 ≈ 0.00995 < 0.01
		removed = mdl.DecayAttractors()
	}
	if len(removed) != 1 || removed[0] != "weak" {
		t.Fatalf("DecayAttractors() removed = %v, want [weak]", removed)
	}
	if len(mdl.GetActiveAttractors()) != 1 {
		t.Fatalf("expected one surviving attractor, got %d", len(mdl.GetActiveAttractors()))
	}
}

func TestCalculateInfluenceOmitsNonPositive(t *testing.T) {
	mdl, _ := newTestModel(t)
	mdl.CreateAttractor("aligned", "aligned", "", []float32{1, 0, 0}, 1.0, 10, nil)
	mdl.CreateAttractor("opposed", "opposed", "", []float32{-1, 0, 0}, 1.0, 10, nil)

	influence, err := mdl.CalculateInfluence([]float32{1, 0, 0})
	if err != nil {
		t.Fatalf("CalculateInfluence() error = %v", err)
	}
	if _, ok := influence["aligned"]; !ok {
		t.Fatal("expected aligned attractor to have positive influence")
	}
	if _, ok := influence["opposed"]; ok {
		t.Fatal("expected opposed attractor to be omitted (influence <= 0)")
	}
}

func TestFindPathToAttractorFollowsStrongestHeuristic(t *testing.T) {
	mdl, m := newTestModel(t)

	start := &graphstore.Neuron{ID: graphstore.NewNeuronID(), Embedding: []float32{1, 0, 0}}
	near := &graphstore.Neuron{ID: graphstore.NewNeuronID(), Embedding: []float32{0, 1, 0}}
	far := &graphstore.Neuron{ID: graphstore.NewNeuronID(), Embedding: []float32{0, 0, 1}}
	for _, n := range []*graphstore.Neuron{start, near, far} {
		if err := m.InsertNeuron(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.AddSynapse(&graphstore.Synapse{SourceID: start.ID, TargetID: near.ID, Type: graphstore.Associative, Weight: 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSynapse(&graphstore.Synapse{SourceID: start.ID, TargetID: far.ID, Type: graphstore.Associative, Weight: 0.2}); err != nil {
		t.Fatal(err)
	}

	mdl.CreateAttractor("goal", "goal", "", []float32{0, 1, 0}, 1.0, 10, nil)

	path, ok := mdl.FindPathToAttractor(start.ID, "goal", 3)
	if !ok {
		t.Fatal("expected a path to be found")
	}
	if path.Steps[0].NeuronID != near.ID {
		t.Fatalf("first hop = %s, want near (closer to attractor embedding)", path.Steps[0].NeuronID)
	}
}

func TestFindPathToAttractorUnknownAttractor(t *testing.T) {
	mdl, m := newTestModel(t)
	start := &graphstore.Neuron{ID: graphstore.NewNeuronID(), Embedding: []float32{1, 0, 0}}
	if err := m.InsertNeuron(start); err != nil {
		t.Fatal(err)
	}
	if _, ok := mdl.FindPathToAttractor(start.ID, "missing", 3); ok {
		t.Fatal("expected no path for an unknown attractor id")
	}
}
