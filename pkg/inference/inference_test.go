package inference

import (
	"context"
	"testing"

	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

func newTestEngine(t *testing.T) (*Engine, *graph.Manager) {
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
	return New(m, Config{}), m
}

func mustInsert(t *testing.T, m *graph.Manager, embedding []float32) graphstore.NeuronID {
	t.Helper()
	n := &graphstore.Neuron{ID: graphstore.NewNeuronID(), Embedding: embedding}
	if err := m.InsertNeuron(n); err != nil {
		t.Fatalf("InsertNeuron() error = %v", err)
	}
	return n.ID
}

func TestForwardDeductionFollowsOutgoingSynapses(t *testing.T) {
	eng, m := newTestEngine(t)
	a := mustInsert(t, m, []float32{1, 0, 0})
	b := mustInsert(t, m, []float32{0, 1, 0})

	if err := m.AddSynapse(&graphstore.Synapse{SourceID: a, TargetID: b, Type: graphstore.Causal, Weight: 0.9}); err != nil {
		t.Fatalf("AddSynapse() error = %v", err)
	}

	results, err := eng.Forward(a)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	found := false
	for _, r := range results {
		if r.NeuronID == b {
			found = true
			if r.Confidence <= 0 || r.Confidence > 0.9 {
				t.Fatalf("confidence = %v, want in (0, 0.9]", r.Confidence)
			}
		}
	}
	if !found {
		t.Fatal("expected b to be reachable from a by forward deduction")
	}
}

func TestBackwardAbductionAppliesPenalty(t *testing.T) {
	eng, m := newTestEngine(t)
	a := mustInsert(t, m, []float32{1, 0, 0})
	b := mustInsert(t, m, []float32{0, 1, 0})

	if err := m.AddSynapse(&graphstore.Synapse{SourceID: a, TargetID: b, Type: graphstore.Causal, Weight: 1.0}); err != nil {
		t.Fatal(err)
	}

	results, err := eng.Backward(b)
	if err != nil {
		t.Fatalf("Backward() error = %v", err)
	}
	if len(results) != 1 || results[0].NeuronID != a {
		t.Fatalf("Backward(b) = %+v, want [a]", results)
	}
	if results[0].Confidence >= 1.0 {
		t.Fatalf("abduction confidence = %v, want penalized below 1.0", results[0].Confidence)
	}
}

func TestCausalChainFindsPath(t *testing.T) {
	eng, m := newTestEngine(t)
	a := mustInsert(t, m, []float32{1, 0, 0})
	b := mustInsert(t, m, []float32{0, 1, 0})
	c := mustInsert(t, m, []float32{0, 0, 1})

	if err := m.AddSynapse(&graphstore.Synapse{SourceID: a, TargetID: b, Type: graphstore.Causal, Weight: 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSynapse(&graphstore.Synapse{SourceID: b, TargetID: c, Type: graphstore.Causal, Weight: 0.8}); err != nil {
		t.Fatal(err)
	}

	chain, ok, err := eng.CausalChain(context.Background(), a, c, false, 5)
	if err != nil {
		t.Fatalf("CausalChain() error = %v", err)
	}
	if !ok {
		t.Fatal("expected a causal chain from a to c")
	}
	if len(chain.Path) != 3 || chain.Path[0] != a || chain.Path[2] != c {
		t.Fatalf("chain path = %v, want [a b c]", chain.Path)
	}
}

func TestCausalChainNoPathReturnsNotOK(t *testing.T) {
	eng, m := newTestEngine(t)
	a := mustInsert(t, m, []float32{1, 0, 0})
	b := mustInsert(t, m, []float32{0, 1, 0})

	_, ok, err := eng.CausalChain(context.Background(), a, b, false, 3)
	if err != nil {
		t.Fatalf("CausalChain() error = %v", err)
	}
	if ok {
		t.Fatal("expected no chain between disconnected neurons")
	}
}

func TestInferBothDirections(t *testing.T) {
	eng, m := newTestEngine(t)
	a := mustInsert(t, m, []float32{1, 0, 0})
	b := mustInsert(t, m, []float32{0, 1, 0})
	c := mustInsert(t, m, []float32{0, 0, 1})

	if err := m.AddSynapse(&graphstore.Synapse{SourceID: a, TargetID: b, Type: graphstore.Causal, Weight: 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSynapse(&graphstore.Synapse{SourceID: c, TargetID: a, Type: graphstore.Causal, Weight: 0.9}); err != nil {
		t.Fatal(err)
	}

	results, err := eng.Infer(a, DirectionBoth)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	ids := map[graphstore.NeuronID]bool{}
	for _, r := range results {
		ids[r.NeuronID] = true
	}
	if !ids[b] || !ids[c] {
		t.Fatalf("Infer(both) = %+v, want both b (forward) and c (backward)", results)
	}
}
