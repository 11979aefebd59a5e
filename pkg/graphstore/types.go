// Package graphstore implements the persistent neuron/synapse graph:
// neuron records, outgoing/incoming adjacency, and secondary indices
// by tag, source type, and Merkle root, layered over an embedded
// key-value backend.
package graphstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/denizumutdereli/graphdb/pkg/hashvec"
)

// NeuronID uniquely identifies a neuron.
type NeuronID string

// SynapseID uniquely identifies a synapse.
type SynapseID string

// NewNeuronID generates a fresh neuron identifier.
func NewNeuronID() NeuronID { return NeuronID(uuid.New().String()) }

// NewSynapseID generates a fresh synapse identifier.
func NewSynapseID() SynapseID { return SynapseID(uuid.New().String()) }

// SynapseType classifies the kind of relationship a synapse encodes.
type SynapseType string

const (
	Causal      SynapseType = "CAUSAL"
	Similar     SynapseType = "SIMILAR"
	Temporal    SynapseType = "TEMPORAL"
	Associative SynapseType = "ASSOCIATIVE"
)

// NeuronMetadata carries the bookkeeping fields the store advances on
// access; AccessCount and LastAccessed only ever advance.
type NeuronMetadata struct {
	CreatedAt    time.Time `msgpack:"created_at"`
	LastAccessed time.Time `msgpack:"last_accessed"`
	AccessCount  uint64    `msgpack:"access_count"`
	SourceType   string    `msgpack:"source_type"`
	Tags         []string  `msgpack:"tags"`
}

// Neuron is one stored unit: an embedding vector plus the chunks of
// source text it represents, sealed by a Merkle root over those
// chunk hashes.
type Neuron struct {
	ID          NeuronID       `msgpack:"id"`
	Embedding   []float32      `msgpack:"embedding"`
	ChunkHashes []hashvec.Hash `msgpack:"chunk_hashes"`
	MerkleRoot  hashvec.Hash   `msgpack:"merkle_root"`
	Metadata    NeuronMetadata `msgpack:"metadata"`

	OutgoingSynapses map[SynapseID]struct{} `msgpack:"outgoing_synapses"`
	IncomingSynapses map[SynapseID]struct{} `msgpack:"incoming_synapses"`
}

// HasTag reports whether the neuron carries the given tag.
func (n *Neuron) HasTag(tag string) bool {
	for _, t := range n.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Synapse is a typed, weighted edge between two neurons.
type Synapse struct {
	ID            SynapseID         `msgpack:"id"`
	SourceID      NeuronID          `msgpack:"source_id"`
	TargetID      NeuronID          `msgpack:"target_id"`
	Type          SynapseType       `msgpack:"type"`
	Weight        float64           `msgpack:"weight"`
	Bidirectional bool              `msgpack:"bidirectional"`
	Metadata      map[string]string `msgpack:"metadata"`
	CreatedAt     time.Time         `msgpack:"created_at"`
}
