// Package ingest wires the full text-to-neuron data flow:
// embed -> chunk -> store chunks -> build Merkle tree -> write neuron
// record -> index embedding. It is the one place that orders those
// steps so callers never have to hand-sequence them.
package ingest

import (
	"context"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/chunker"
	"github.com/denizumutdereli/graphdb/pkg/chunkstore"
	"github.com/denizumutdereli/graphdb/pkg/embedding"
	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hashvec"
	"github.com/denizumutdereli/graphdb/pkg/merkle"
)

// Pipeline binds the components that turn raw text into a persisted,
// indexed neuron.
type Pipeline struct {
	Chunks       *chunkstore.Store
	Graph        *graph.Manager
	Embedder     embedding.Provider
	MaxChunkSize int // 0 uses chunker.DefaultMaxChunkBytes
}

// Request describes one piece of text to ingest.
type Request struct {
	Text       string
	SourceType string
	Tags       []string
}

// Ingest embeds text, splits it into chunks, persists them, builds
// their Merkle tree, and writes the resulting neuron record through
// the graph manager. On any failure after chunks have been stored, the
// already-stored chunks are left in place with the reference Put gave
// them; they are not released, and GC (which removes only records whose
// refcount has reached zero) does not reclaim them. No partial neuron
// becomes visible: the neuron record is written only as the last step.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*graphstore.Neuron, error) {
	cleaned := chunker.CleanText(req.Text)

	vec, err := p.Embedder.Embed(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	segments := chunker.Split(cleaned, p.MaxChunkSize)
	hashes := make([]hashvec.Hash, 0, len(segments))
	for _, seg := range segments {
		h, err := p.Chunks.Put(seg.Data, seg.Index, seg.Offset, nil)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	root := merkle.Root(hashes)

	now := time.Now().UTC()
	n := &graphstore.Neuron{
		ID:          graphstore.NewNeuronID(),
		Embedding:   vec,
		ChunkHashes: hashes,
		MerkleRoot:  root,
		Metadata: graphstore.NeuronMetadata{
			CreatedAt:    now,
			LastAccessed: now,
			SourceType:   req.SourceType,
			Tags:         req.Tags,
		},
	}

	if err := p.Graph.InsertNeuron(n); err != nil {
		return nil, err
	}
	return n, nil
}
