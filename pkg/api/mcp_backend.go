package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/inference"
)

// mcpBackend adapts a Server's engine to pkg/mcp.Backend. Responses
// reuse the document builders the REST handlers serialize with, so
// both transports describe the same engine state identically.
type mcpBackend struct {
	server *Server
}

func newMCPBackend(s *Server) *mcpBackend {
	return &mcpBackend{server: s}
}

func (b *mcpBackend) Ingest(ctx context.Context, text, sourceType string, tags []string) (map[string]any, error) {
	if sourceType == "" {
		sourceType = "mcp"
	}
	n, err := b.server.engine.IngestText(ctx, text, sourceType, tags)
	if err != nil {
		return nil, err
	}
	return neuronToDoc(n), nil
}

func (b *mcpBackend) GetNeuron(_ context.Context, id string) (map[string]any, error) {
	n, err := b.server.engine.Graph.GetNeuron(graphstore.NeuronID(id))
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("neuron not found: %s", id)
	}
	return neuronToDoc(n), nil
}

func (b *mcpBackend) Search(ctx context.Context, query string, k int) (map[string]any, error) {
	if b.server.engine.Embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	k = clampPositive(k, defaultSearchK, maxSearchK)

	vec, err := b.server.engine.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := b.server.engine.Graph.FindSimilar(vec, k, 0)
	if err != nil {
		return nil, err
	}
	b.server.engine.Metrics.SearchRun()

	docs := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		doc := neuronToDoc(h.Neuron)
		doc["similarity"] = h.Similarity
		docs = append(docs, doc)
	}
	return map[string]any{"results": docs, "count": len(docs), "query": query}, nil
}

func (b *mcpBackend) Infer(_ context.Context, neuronID, direction string) (map[string]any, error) {
	dir := inference.Direction(strings.ToLower(strings.TrimSpace(direction)))
	switch dir {
	case inference.DirectionForward, inference.DirectionBackward, inference.DirectionBoth:
	case "":
		dir = inference.DirectionBoth
	default:
		return nil, fmt.Errorf("direction must be forward, backward, or both")
	}

	results, err := b.server.engine.Inference.Infer(graphstore.NeuronID(neuronID), dir)
	if err != nil {
		return nil, err
	}
	b.server.engine.Metrics.InferenceRun()
	return map[string]any{"results": inferencesToDocs(results), "direction": string(dir)}, nil
}

func (b *mcpBackend) CausalChain(ctx context.Context, from, to string, includeTemporal bool, maxDepth int) (map[string]any, error) {
	chain, found, err := b.server.engine.Inference.CausalChain(ctx, graphstore.NeuronID(from), graphstore.NeuronID(to), includeTemporal, maxDepth)
	if err != nil {
		return nil, err
	}
	b.server.engine.Metrics.InferenceRun()
	if !found {
		return map[string]any{"found": false}, nil
	}

	path := make([]string, 0, len(chain.Path))
	for _, id := range chain.Path {
		path = append(path, string(id))
	}
	links := make([]map[string]any, 0, len(chain.Links))
	for _, l := range chain.Links {
		links = append(links, map[string]any{"from": l.From, "to": l.To, "strength": l.Strength})
	}
	return map[string]any{"found": true, "path": path, "links": links, "strength": chain.Strength}, nil
}

func (b *mcpBackend) Stats(_ context.Context) (map[string]any, error) {
	chunkStats, err := b.server.engine.Chunks.GetStats()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chunks":     chunkStats,
		"compaction": b.server.engine.Compactor.CurrentStats(),
		"attractors": b.server.engine.Attractors.GetStats(),
		"tombstones": b.server.engine.Index.TombstoneCount(),
		"neurons":    b.server.engine.Index.Len(),
	}, nil
}
