package e2e

import (
	"testing"

	"github.com/denizumutdereli/graphdb/pkg/graphstore"
)

const testDim = 32

// Two neurons with identical embeddings tie at similarity 1.0; a third
// with an orthogonal embedding scores 0.0 against the same query.
func TestHNSW_SimilarityTies(t *testing.T) {
	s := newStack(t, testDim)

	a := newNeuron(vec(testDim, 0))
	b := newNeuron(vec(testDim, 0))
	c := newNeuron(vec(testDim, 1))
	for _, n := range []*graphstore.Neuron{a, b, c} {
		if err := s.Graph.InsertNeuron(n); err != nil {
			t.Fatalf("InsertNeuron: %v", err)
		}
	}

	hits, err := s.Graph.FindSimilar(vec(testDim, 0), 3, 0)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}

	byID := make(map[graphstore.NeuronID]float64)
	for _, h := range hits {
		byID[h.Neuron.ID] = h.Similarity
	}
	if byID[a.ID] < 0.999 {
		t.Fatalf("similarity(A) = %v, want ~1.0", byID[a.ID])
	}
	if byID[b.ID] < 0.999 {
		t.Fatalf("similarity(B) = %v, want ~1.0", byID[b.ID])
	}
	if abs(byID[c.ID]) > 1e-9 {
		t.Fatalf("similarity(C) = %v, want ~0.0 (orthogonal)", byID[c.ID])
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Inserting 100 neurons and deleting 60 of them leaves 60 tombstones;
// forcing a compaction physically removes all of them and resets the
// tombstone count to zero, while the surviving 40 remain searchable
// and the set of ids returned is unchanged by the compaction itself.
func TestHNSW_InsertDeleteCompactCycle(t *testing.T) {
	s := newStack(t, testDim)

	var ids []graphstore.NeuronID
	for i := 0; i < 100; i++ {
		n := newNeuron(vec(testDim, i%testDim))
		if err := s.Graph.InsertNeuron(n); err != nil {
			t.Fatalf("InsertNeuron(%d): %v", i, err)
		}
		ids = append(ids, n.ID)
	}

	for _, id := range ids[:60] {
		if err := s.Graph.DeleteNeuron(id); err != nil {
			t.Fatalf("DeleteNeuron(%s): %v", id, err)
		}
	}

	if got := s.Index.TombstoneCount(); got != 60 {
		t.Fatalf("TombstoneCount() = %d, want 60", got)
	}

	beforeResults, err := s.Graph.FindSimilar(vec(testDim, 0), 40, 200)
	if err != nil {
		t.Fatalf("FindSimilar before compact: %v", err)
	}

	stats := s.Compactor.ForceCompact()
	if stats.TotalHnswRemoved != 60 {
		t.Fatalf("TotalHnswRemoved = %d, want 60", stats.TotalHnswRemoved)
	}
	if got := s.Index.TombstoneCount(); got != 0 {
		t.Fatalf("TombstoneCount() after compact = %d, want 0", got)
	}
	if got := s.Index.Len(); got != 40 {
		t.Fatalf("Len() after compact = %d, want 40", got)
	}

	afterResults, err := s.Graph.FindSimilar(vec(testDim, 0), 40, 200)
	if err != nil {
		t.Fatalf("FindSimilar after compact: %v", err)
	}

	beforeIDs := make(map[graphstore.NeuronID]bool)
	for _, r := range beforeResults {
		beforeIDs[r.Neuron.ID] = true
	}
	for _, r := range afterResults {
		if !beforeIDs[r.Neuron.ID] {
			t.Fatalf("compaction changed the live result set: %s was not present before", r.Neuron.ID)
		}
	}
	if len(afterResults) != len(beforeResults) {
		t.Fatalf("result count changed across compaction: %d before, %d after", len(beforeResults), len(afterResults))
	}
}
