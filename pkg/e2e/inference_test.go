package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/inference"
)

// A -> B -> C over two CAUSAL synapses (weights 0.8 and 0.9) gives
// forward deduction from A to C a raw confidence of 0.8*0.9 = 0.72;
// backward abduction from C to A walks the identical weighted path
// and applies the abduction penalty once to the whole chain, giving
// 0.72*0.8 = 0.576, not the per-hop-compounded 0.8*0.8 * 0.9*0.8.
func TestInference_ForwardAndBackwardConfidence(t *testing.T) {
	s := newStack(t, 0)

	a := newNeuron(nil)
	b := newNeuron(nil)
	c := newNeuron(nil)
	for _, n := range []*graphstore.Neuron{a, b, c} {
		if err := s.Graph.InsertNeuron(n); err != nil {
			t.Fatalf("InsertNeuron: %v", err)
		}
	}

	link := func(from, to *graphstore.Neuron, weight float64) {
		sy := &graphstore.Synapse{
			ID:        graphstore.NewSynapseID(),
			SourceID:  from.ID,
			TargetID:  to.ID,
			Type:      graphstore.Causal,
			Weight:    weight,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.Graph.AddSynapse(sy); err != nil {
			t.Fatalf("AddSynapse(%s->%s): %v", from.ID, to.ID, err)
		}
	}
	link(a, b, 0.8)
	link(b, c, 0.9)

	forward, err := s.Inference.Forward(a.ID)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	forwardToC := findByNeuron(forward, c.ID)
	if forwardToC == nil {
		t.Fatal("forward result for C not found")
	}
	if !closeTo(forwardToC.Confidence, 0.72) {
		t.Fatalf("forward confidence to C = %v, want 0.72", forwardToC.Confidence)
	}

	backward, err := s.Inference.Backward(c.ID)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	backwardToA := findByNeuron(backward, a.ID)
	if backwardToA == nil {
		t.Fatal("backward result for A not found")
	}
	if !closeTo(backwardToA.Confidence, 0.576) {
		t.Fatalf("backward confidence to A = %v, want 0.576", backwardToA.Confidence)
	}
}

func TestInference_CausalChainFindsPath(t *testing.T) {
	s := newStack(t, 0)

	a := newNeuron(nil)
	b := newNeuron(nil)
	c := newNeuron(nil)
	for _, n := range []*graphstore.Neuron{a, b, c} {
		if err := s.Graph.InsertNeuron(n); err != nil {
			t.Fatalf("InsertNeuron: %v", err)
		}
	}
	for _, sy := range []*graphstore.Synapse{
		{ID: graphstore.NewSynapseID(), SourceID: a.ID, TargetID: b.ID, Type: graphstore.Causal, Weight: 0.8, CreatedAt: time.Now().UTC()},
		{ID: graphstore.NewSynapseID(), SourceID: b.ID, TargetID: c.ID, Type: graphstore.Causal, Weight: 0.9, CreatedAt: time.Now().UTC()},
	} {
		if err := s.Graph.AddSynapse(sy); err != nil {
			t.Fatalf("AddSynapse: %v", err)
		}
	}

	chain, ok, err := s.Inference.CausalChain(context.Background(), a.ID, c.ID, false, 6)
	if err != nil {
		t.Fatalf("CausalChain: %v", err)
	}
	if !ok {
		t.Fatal("expected a chain to be found")
	}
	if len(chain.Path) != 3 || chain.Path[0] != a.ID || chain.Path[2] != c.ID {
		t.Fatalf("chain path = %v, want [A B C]", chain.Path)
	}
	if !closeTo(chain.Strength, 0.72) {
		t.Fatalf("chain strength = %v, want 0.72", chain.Strength)
	}
}

func findByNeuron(in []inference.Inference, id graphstore.NeuronID) *inference.Inference {
	for i := range in {
		if in[i].NeuronID == id {
			return &in[i]
		}
	}
	return nil
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
