// Package inference implements the bidirectional inference engine:
// forward deduction and backward abduction over typed synapse
// adjacency, causal-chain search between two neurons, and a combined
// entry point composing both directions.
package inference

import (
	"context"
	"fmt"
	"sort"

	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
)

// TypeWeights maps a synapse type to its contribution to path confidence.
type TypeWeights map[graphstore.SynapseType]float64

// DefaultTypeWeights returns the built-in per-type weights.
func DefaultTypeWeights() TypeWeights {
	return TypeWeights{
		graphstore.Causal:      1.0,
		graphstore.Temporal:    0.9,
		graphstore.Similar:     0.7,
		graphstore.Associative: 0.5,
	}
}

// Config controls inference weighting.
type Config struct {
	TypeWeights      TypeWeights
	AbductionPenalty float64 // applied once to each backward result's confidence, default 0.8
	SimilarityWeight float64 // weight applied to k-NN augmentation, default 0.5
	MaxDepth         int     // default 5
	SimilarK         int     // k-NN neighbors to augment forward results with, default 5
}

func (c Config) normalized() Config {
	if len(c.TypeWeights) == 0 {
		c.TypeWeights = DefaultTypeWeights()
	}
	if c.AbductionPenalty <= 0 {
		c.AbductionPenalty = 0.8
	}
	if c.SimilarityWeight <= 0 {
		c.SimilarityWeight = 0.5
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 5
	}
	if c.SimilarK <= 0 {
		c.SimilarK = 5
	}
	return c
}

// Inference is one result entry from Forward/Backward/Infer.
type Inference struct {
	NeuronID    graphstore.NeuronID
	Confidence  float64
	Path        []graphstore.NeuronID
	Explanation string
}

// Engine runs inference queries over a graph.Manager.
type Engine struct {
	graph *graph.Manager
	cfg   Config
}

// New creates an Engine bound to m.
func New(m *graph.Manager, cfg Config) *Engine {
	return &Engine{graph: m, cfg: cfg.normalized()}
}

type frontierEntry struct {
	id         graphstore.NeuronID
	confidence float64
	path       []graphstore.NeuronID
}

// Forward performs breadth-first deduction from source over outgoing
// synapses. Also augments the result with k-NN similar neurons of
// source, when source has an embedding.
func (e *Engine) Forward(source graphstore.NeuronID) ([]Inference, error) {
	results, err := e.traverse(source, e.cfg.MaxDepth, true, 1.0)
	if err != nil {
		return nil, err
	}

	n, err := e.graph.Store().GetNeuron(source)
	if err != nil {
		return nil, err
	}
	if n != nil && len(n.Embedding) > 0 {
		similar, err := e.graph.FindSimilar(n.Embedding, e.cfg.SimilarK, 0)
		if err != nil {
			return nil, err
		}
		for _, s := range similar {
			if s.Neuron.ID == source {
				continue
			}
			results = append(results, Inference{
				NeuronID:    s.Neuron.ID,
				Confidence:  s.Similarity * e.cfg.SimilarityWeight,
				Path:        []graphstore.NeuronID{source, s.Neuron.ID},
				Explanation: fmt.Sprintf("similarity %.3f to %s", s.Similarity, source),
			})
		}
	}

	return dedupeByMaxConfidence(results), nil
}

// Backward performs breadth-first abduction from target over incoming
// synapses: the raw path confidence is the product of traversed edge
// weights, exactly as in Forward, with the abduction penalty applied
// once to the whole chain rather than compounded per hop.
func (e *Engine) Backward(target graphstore.NeuronID) ([]Inference, error) {
	results, err := e.traverse(target, e.cfg.MaxDepth, false, 1.0)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Confidence *= e.cfg.AbductionPenalty
	}
	return dedupeByMaxConfidence(results), nil
}

// traverse runs a weighted BFS from start, following outgoing adjacency
// when forward is true and incoming adjacency otherwise. edgeFactor
// multiplies every edge weight; Forward and Backward both pass 1.0, and
// Backward applies the abduction penalty to the finished results.
func (e *Engine) traverse(start graphstore.NeuronID, maxDepth int, forward bool, edgeFactor float64) ([]Inference, error) {
	visited := map[graphstore.NeuronID]bool{start: true}
	frontier := []frontierEntry{{id: start, confidence: 1.0, path: []graphstore.NeuronID{start}}}
	var out []Inference

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []frontierEntry
		for _, f := range frontier {
			synapses, err := e.adjacency(f.id, forward)
			if err != nil {
				return nil, err
			}
			for _, sy := range synapses {
				if sy.Weight <= 0 {
					continue
				}
				targetID := sy.TargetID
				if !forward {
					targetID = sy.SourceID
				}
				if visited[targetID] {
					continue
				}
				visited[targetID] = true

				typeWeight := e.cfg.TypeWeights[sy.Type]
				conf := f.confidence * sy.Weight * typeWeight * edgeFactor
				path := append(append([]graphstore.NeuronID{}, f.path...), targetID)

				dir := "deduced from"
				if !forward {
					dir = "abduced from"
				}
				out = append(out, Inference{
					NeuronID:    targetID,
					Confidence:  conf,
					Path:        path,
					Explanation: fmt.Sprintf("%s %s via %s (weight %.3f)", dir, f.id, sy.Type, sy.Weight),
				})
				next = append(next, frontierEntry{id: targetID, confidence: conf, path: path})
			}
		}
		frontier = next
	}

	return out, nil
}

func (e *Engine) adjacency(id graphstore.NeuronID, forward bool) ([]*graphstore.Synapse, error) {
	if forward {
		return e.graph.Store().GetOutgoingSynapses(id)
	}
	return e.graph.Store().GetIncomingSynapses(id)
}

// dedupeByMaxConfidence keeps, for each neuron id reachable by multiple
// paths, only the highest-confidence entry, then sorts descending.
func dedupeByMaxConfidence(in []Inference) []Inference {
	best := make(map[graphstore.NeuronID]Inference)
	for _, r := range in {
		cur, ok := best[r.NeuronID]
		if !ok || r.Confidence > cur.Confidence {
			best[r.NeuronID] = r
		}
	}
	out := make([]Inference, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Link is one edge of a causal chain.
type Link struct {
	From, To graphstore.NeuronID
	Strength float64
}

// Chain is the result of CausalChain: an ordered path of neurons
// connected by CAUSAL (and optionally TEMPORAL) edges.
type Chain struct {
	Path     []graphstore.NeuronID
	Links    []Link
	Strength float64
}

// CausalChain searches for a path of CAUSAL/TEMPORAL edges between from
// and to, bidirectionally from each end up to maxDepth hops, returning
// the first chain found and its ok=true, or ok=false if none exists
// within budget.
func (e *Engine) CausalChain(ctx context.Context, from, to graphstore.NeuronID, includeTemporal bool, maxDepth int) (Chain, bool, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.MaxDepth
	}
	allowed := map[graphstore.SynapseType]bool{graphstore.Causal: true}
	if includeTemporal {
		allowed[graphstore.Temporal] = true
	}

	type bfsState struct {
		prev map[graphstore.NeuronID]graphstore.NeuronID
		via  map[graphstore.NeuronID]*graphstore.Synapse
	}
	forwardState := bfsState{prev: map[graphstore.NeuronID]graphstore.NeuronID{from: from}, via: map[graphstore.NeuronID]*graphstore.Synapse{}}
	backwardState := bfsState{prev: map[graphstore.NeuronID]graphstore.NeuronID{to: to}, via: map[graphstore.NeuronID]*graphstore.Synapse{}}

	fFrontier := []graphstore.NeuronID{from}
	bFrontier := []graphstore.NeuronID{to}

	meet := graphstore.NeuronID("")
	for depth := 0; depth < maxDepth && meet == ""; depth++ {
		select {
		case <-ctx.Done():
			return Chain{}, false, ctx.Err()
		default:
		}

		var err error
		fFrontier, meet, err = e.expandChainFrontier(fFrontier, forwardState.prev, forwardState.via, allowed, true, backwardState.prev)
		if err != nil {
			return Chain{}, false, err
		}
		if meet != "" {
			break
		}
		bFrontier, meet, err = e.expandChainFrontier(bFrontier, backwardState.prev, backwardState.via, allowed, false, forwardState.prev)
		if err != nil {
			return Chain{}, false, err
		}
	}

	if meet == "" {
		return Chain{}, false, nil
	}

	fPath := reconstructPath(forwardState.prev, from, meet)
	bPath := reconstructPath(backwardState.prev, to, meet)

	path := append([]graphstore.NeuronID{}, fPath...)
	for i := len(bPath) - 2; i >= 0; i-- {
		path = append(path, bPath[i])
	}

	var links []Link
	strength := 1.0
	for i := 0; i < len(path)-1; i++ {
		sy := findLinkWeight(forwardState.via, backwardState.via, path[i], path[i+1])
		links = append(links, Link{From: path[i], To: path[i+1], Strength: sy})
		strength *= sy
	}

	return Chain{Path: path, Links: links, Strength: strength}, true, nil
}

func (e *Engine) expandChainFrontier(
	frontier []graphstore.NeuronID,
	prev map[graphstore.NeuronID]graphstore.NeuronID,
	via map[graphstore.NeuronID]*graphstore.Synapse,
	allowed map[graphstore.SynapseType]bool,
	forward bool,
	otherPrev map[graphstore.NeuronID]graphstore.NeuronID,
) ([]graphstore.NeuronID, graphstore.NeuronID, error) {
	var next []graphstore.NeuronID
	for _, id := range frontier {
		synapses, err := e.adjacency(id, forward)
		if err != nil {
			return nil, "", err
		}
		for _, sy := range synapses {
			if !allowed[sy.Type] || sy.Weight <= 0 {
				continue
			}
			targetID := sy.TargetID
			if !forward {
				targetID = sy.SourceID
			}
			if _, seen := prev[targetID]; seen {
				continue
			}
			prev[targetID] = id
			via[targetID] = sy
			next = append(next, targetID)
			if _, metInOther := otherPrev[targetID]; metInOther {
				return next, targetID, nil
			}
		}
	}
	return next, "", nil
}

func reconstructPath(prev map[graphstore.NeuronID]graphstore.NeuronID, start, meet graphstore.NeuronID) []graphstore.NeuronID {
	var path []graphstore.NeuronID
	cur := meet
	for {
		path = append([]graphstore.NeuronID{cur}, path...)
		if cur == start {
			break
		}
		cur = prev[cur]
	}
	return path
}

func findLinkWeight(fVia, bVia map[graphstore.NeuronID]*graphstore.Synapse, from, to graphstore.NeuronID) float64 {
	if sy, ok := fVia[to]; ok && sy != nil {
		return sy.Weight
	}
	if sy, ok := bVia[from]; ok && sy != nil {
		return sy.Weight
	}
	return 1.0
}

// Direction selects which traversal(s) Infer runs.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

// Infer runs forward and/or backward inference per direction and
// composes the results, deduplicated and sorted by confidence.
func (e *Engine) Infer(source graphstore.NeuronID, direction Direction) ([]Inference, error) {
	var out []Inference
	if direction == DirectionForward || direction == DirectionBoth {
		fwd, err := e.Forward(source)
		if err != nil {
			return nil, err
		}
		out = append(out, fwd...)
	}
	if direction == DirectionBackward || direction == DirectionBoth {
		back, err := e.Backward(source)
		if err != nil {
			return nil, err
		}
		out = append(out, back...)
	}
	return dedupeByMaxConfidence(out), nil
}
