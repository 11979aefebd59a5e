// Package graph implements the façade binding the neuron/synapse
// store (graphstore) to the HNSW index: every mutation that touches
// one also touches the other, so a neuron with an embedding is always
// either indexed or tombstoned. That invariant is enforced at this
// single seam rather than scattered across callers.
package graph

import (
	"errors"
	"log"

	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

// ErrEmbeddingDimMismatch is returned when an inserted embedding does
// not match the manager's configured dimension.
var ErrEmbeddingDimMismatch = errors.New("graph: embedding dimension mismatch")

// Compactor is the subset of the compaction scheduler a Manager needs
// to notify after a delete.
type Compactor interface {
	MaybeCompact()
}

// Manager binds a graphstore.Store, an hnsw.Index, and a chunkstore.Store.
type Manager struct {
	store        *graphstore.Store
	index        *hnsw.Index
	chunks       *chunkstore.Store
	compactor    Compactor
	embeddingDim int
}

// Config configures a Manager.
type Config struct {
	EmbeddingDim int
}

// New binds store, index, and chunks into one façade. compactor may be
// nil if no compaction scheduler is wired up (deletes then simply skip
// the notification step).
func New(cfg Config, store *graphstore.Store, index *hnsw.Index, chunks *chunkstore.Store, compactor Compactor) *Manager {
	return &Manager{store: store, index: index, chunks: chunks, compactor: compactor, embeddingDim: cfg.EmbeddingDim}
}

// InsertNeuron validates the embedding length, persists n to the
// record store, and inserts its embedding into the HNSW index. Both
// steps must succeed for the neuron to be considered live; if the
// record write fails the index is never touched.
func (m *Manager) InsertNeuron(n *graphstore.Neuron) error {
	if m.embeddingDim > 0 && len(n.Embedding) != m.embeddingDim {
		return ErrEmbeddingDimMismatch
	}
	if err := m.store.PutNeuron(n); err != nil {
		return err
	}
	m.index.Insert(string(n.ID), n.Embedding)
	return nil
}

// DeleteNeuron tombstones id in the HNSW index, removes its record
// (and adjacent synapses) from the store, notifies the compaction
// scheduler, and decrements the refcount of every chunk it referenced.
func (m *Manager) DeleteNeuron(id graphstore.NeuronID) error {
	n, err := m.store.GetNeuron(id)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}

	m.index.Delete(string(id))

	if err := m.store.DeleteNeuron(id); err != nil {
		return err
	}

	if m.compactor != nil {
		m.compactor.MaybeCompact()
	}

	for _, h := range n.ChunkHashes {
		if _, err := m.chunks.Delete(h); err != nil {
			log.Printf("graph: chunk refcount decrement failed for %s: %v", h, err)
		}
	}
	return nil
}

// SimilarNeuron pairs a resolved neuron record with its HNSW similarity.
type SimilarNeuron struct {
	Neuron     *graphstore.Neuron
	Similarity float64
}

// FindSimilar queries the HNSW index and resolves surviving ids
// through the record store, silently dropping any id whose record is
// missing (the index was stale relative to the store).
func (m *Manager) FindSimilar(query []float32, k int, ef int) ([]SimilarNeuron, error) {
	hits := m.index.Search(query, k, ef)
	out := make([]SimilarNeuron, 0, len(hits))
	for _, h := range hits {
		n, err := m.store.GetNeuron(graphstore.NeuronID(h.ID))
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		out = append(out, SimilarNeuron{Neuron: n, Similarity: h.Similarity})
	}
	return out, nil
}

// GetNeuron fetches a neuron record by id, touching its access stats.
func (m *Manager) GetNeuron(id graphstore.NeuronID) (*graphstore.Neuron, error) {
	n, err := m.store.GetNeuron(id)
	if err != nil || n == nil {
		return n, err
	}
	if err := m.store.TouchAccess(id); err != nil {
		log.Printf("graph: access touch failed for %s: %v", id, err)
	}
	return n, nil
}

// AddSynapse creates a synapse through the record store.
func (m *Manager) AddSynapse(sy *graphstore.Synapse) error {
	return m.store.AddSynapse(sy)
}

// RemoveSynapse removes a synapse through the record store.
func (m *Manager) RemoveSynapse(id graphstore.SynapseID) error {
	return m.store.RemoveSynapse(id)
}

// Store exposes the underlying record store for read-heavy callers
// (inference, attractors) that need secondary-index lookups beyond
// this façade's scope.
func (m *Manager) Store() *graphstore.Store { return m.store }

// RebuildIndex repopulates the HNSW index from the live neuron set in
// the record store. The index is a cache whose authority is the
// record store; call this once at startup (the index itself is
// in-memory and does not survive a process restart).
func (m *Manager) RebuildIndex() error {
	ids, err := m.store.GetAllNeuronIds()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n, err := m.store.GetNeuron(id)
		if err != nil {
			return err
		}
		if n == nil || len(n.Embedding) == 0 {
			continue
		}
		m.index.Insert(string(n.ID), n.Embedding)
	}
	return nil
}
