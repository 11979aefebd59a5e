package graph

import (
	"testing"

	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hashvec"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

func newTestManager(t *testing.T) *Manager {
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
	return New(Config{EmbeddingDim: 3}, gs, idx, cs, nil)
}

func newNeuron(embedding []float32, chunkHashes ...hashvec.Hash) *graphstore.Neuron {
	return &graphstore.Neuron{
		ID:          graphstore.NewNeuronID(),
		Embedding:   embedding,
		ChunkHashes: chunkHashes,
	}
}

func TestInsertAndFindSimilar(t *testing.T) {
	m := newTestManager(t)

	a := newNeuron([]float32{1, 0, 0})
	b := newNeuron([]float32{1, 0, 0})
	c := newNeuron([]float32{0, 1, 0})
	for _, n := range []*graphstore.Neuron{a, b, c} {
		if err := m.InsertNeuron(n); err != nil {
			t.Fatalf("InsertNeuron() error = %v", err)
		}
	}

	results, err := m.FindSimilar([]float32{1, 0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("FindSimilar() returned %d results, want 2", len(results))
	}
	if results[0].Similarity < 0.999 {
		t.Fatalf("top similarity = %v, want ~1.0", results[0].Similarity)
	}
}

func TestInsertRejectsWrongDimension(t *testing.T) {
	m := newTestManager(t)
	n := newNeuron([]float32{1, 0})
	if err := m.InsertNeuron(n); err != ErrEmbeddingDimMismatch {
		t.Fatalf("InsertNeuron() error = %v, want ErrEmbeddingDimMismatch", err)
	}
}

func TestDeleteNeuronRemovesFromIndexAndStoreAndChunks(t *testing.T) {
	m := newTestManager(t)

	hash, err := m.chunks.Put([]byte("hello world"), 0, 0, nil)
	if err != nil {
		t.Fatalf("chunks.Put() error = %v", err)
	}

	n := newNeuron([]float32{1, 0, 0}, hash)
	if err := m.InsertNeuron(n); err != nil {
		t.Fatalf("InsertNeuron() error = %v", err)
	}

	if err := m.DeleteNeuron(n.ID); err != nil {
		t.Fatalf("DeleteNeuron() error = %v", err)
	}

	got, err := m.store.GetNeuron(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected neuron record to be removed")
	}

	chunk, err := m.chunks.Get(hash)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != nil {
		t.Fatal("expected chunk to be garbage after refcount reached zero")
	}

	results, err := m.FindSimilar([]float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Neuron.ID == n.ID {
			t.Fatal("deleted neuron should not appear in similarity results")
		}
	}
}

func TestRebuildIndexRestoresSearchability(t *testing.T) {
	m := newTestManager(t)
	a := newNeuron([]float32{1, 0, 0})
	b := newNeuron([]float32{0, 1, 0})
	for _, n := range []*graphstore.Neuron{a, b} {
		if err := m.InsertNeuron(n); err != nil {
			t.Fatal(err)
		}
	}

	// Simulate a process restart: a fresh, empty HNSW index bound to
	// the same (already-populated) record store.
	m.index = hnsw.New(hnsw.DefaultConfig())

	if _, err := m.FindSimilar([]float32{1, 0, 0}, 5, 0); err != nil {
		t.Fatal(err)
	}

	if err := m.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}

	results, err := m.FindSimilar([]float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("FindSimilar() after rebuild = %d results, want 2", len(results))
	}
}
