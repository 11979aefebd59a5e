// Package hnsw implements an in-memory hierarchical navigable
// small-world approximate nearest-neighbor index: a multi-layer
// proximity graph over neuron embeddings with soft delete
// (tombstones) and physical compaction.
//
// Construction follows Malkov & Yashunin: each node draws a random
// top layer, searches descend greedily through the upper layers and
// expand a bounded candidate set at the target layer. Distance is
// 1 - cosine similarity.
package hnsw

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/denizumutdereli/graphdb/pkg/hashvec"
)

// Config holds HNSW build and query parameters.
type Config struct {
	M              int     // neighbors per node per layer (2M at layer 0)
	EfConstruction int     // candidate set size during insert
	EfSearch       int     // default candidate set size during query
	ML             float64 // level-assignment factor; 0 means 1/ln(M)
	Seed           int64
}

// DefaultConfig returns the recommended HNSW build parameters.
func DefaultConfig() Config {
	return Config{M: 16, EfConstruction: 200, EfSearch: 50, ML: 1 / math.Log(16), Seed: 1}
}

func (c Config) normalized() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.ML <= 0 {
		c.ML = 1 / math.Log(float64(c.M))
	}
	return c
}

type node struct {
	id         string
	vector     []float32
	level      int
	neighbors  [][]string // neighbors[layer] = neighbor ids at that layer
	tombstoned bool
}

// Index is an HNSW graph over fixed-dimension vectors, scored by
// cosine distance (1 - cosine similarity).
type Index struct {
	cfg Config
	rng *rand.Rand

	mu             sync.RWMutex
	nodes          map[string]*node
	entryPoint     string
	maxLevel       int
	tombstoneCount int
}

// New creates an empty index.
func New(cfg Config) *Index {
	cfg = cfg.normalized()
	return &Index{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		nodes: make(map[string]*node),
	}
}

func (idx *Index) randomLevel() int {
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.cfg.ML))
}

func (idx *Index) distance(a, b []float32) float64 {
	cos, err := hashvec.Cosine(a, b)
	if err != nil {
		return 2 // maximal distance for mismatched dimensions
	}
	return 1 - cos
}

// Insert adds or replaces a vector under id. Deterministic for a
// fixed seed and a fixed sequence of inserts.
func (idx *Index) Insert(id string, vector []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	level := idx.randomLevel()
	n := &node{id: id, vector: vector, level: level, neighbors: make([][]string, level+1)}
	for l := range n.neighbors {
		n.neighbors[l] = nil
	}

	if idx.entryPoint == "" {
		idx.nodes[id] = n
		idx.entryPoint = id
		idx.maxLevel = level
		return
	}

	entry := idx.entryPoint
	curDist := idx.distance(vector, idx.nodes[entry].vector)
	for l := idx.maxLevel; l > level; l-- {
		entry, curDist = idx.greedyDescend(entry, curDist, vector, l)
	}

	idx.nodes[id] = n

	candidates := []string{entry}
	for l := min(level, idx.maxLevel); l >= 0; l-- {
		nearest := idx.searchLayer(vector, candidates, idx.cfg.EfConstruction, l)
		m := idx.cfg.M
		if l == 0 {
			m *= 2
		}
		selected := idx.selectNeighbors(vector, nearest, m)
		n.neighbors[l] = selected

		for _, nb := range selected {
			idx.connect(nb, id, l)
		}
		candidates = nearest
	}

	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entryPoint = id
	}
}

func (idx *Index) connect(id, newID string, layer int) {
	other, ok := idx.nodes[id]
	if !ok || layer >= len(other.neighbors) {
		return
	}
	other.neighbors[layer] = append(other.neighbors[layer], newID)
	m := idx.cfg.M
	if layer == 0 {
		m *= 2
	}
	if len(other.neighbors[layer]) > m {
		trimmed := idx.selectNeighbors(other.vector, other.neighbors[layer], m)
		other.neighbors[layer] = trimmed
	}
}

// greedyDescend walks from entry toward the nearest node to query at
// the given layer, single-hop-greedy (used above layer 0 to find a
// good entry point for the next layer down).
func (idx *Index) greedyDescend(entry string, entryDist float64, query []float32, layer int) (string, float64) {
	improved := true
	best, bestDist := entry, entryDist
	for improved {
		improved = false
		n, ok := idx.nodes[best]
		if !ok || layer >= len(n.neighbors) {
			break
		}
		for _, nb := range n.neighbors[layer] {
			nbNode, ok := idx.nodes[nb]
			if !ok {
				continue
			}
			d := idx.distance(query, nbNode.vector)
			if d < bestDist {
				best, bestDist = nb, d
				improved = true
			}
		}
	}
	return best, bestDist
}

type candidate struct {
	id   string
	dist float64
}

// searchLayer performs a best-first expansion from entryPoints,
// returning up to ef ids ordered by increasing distance.
func (idx *Index) searchLayer(query []float32, entryPoints []string, ef int, layer int) []string {
	visited := make(map[string]bool)
	var candidates []candidate
	var results []candidate

	for _, ep := range entryPoints {
		n, ok := idx.nodes[ep]
		if !ok || visited[ep] {
			continue
		}
		visited[ep] = true
		d := idx.distance(query, n.vector)
		candidates = append(candidates, candidate{ep, d})
		results = append(results, candidate{ep, d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	for len(candidates) > 0 {
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
		if len(results) >= ef && c.dist > results[len(results)-1].dist {
			break
		}

		n, ok := idx.nodes[c.id]
		if !ok || layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode, ok := idx.nodes[nb]
			if !ok {
				continue
			}
			d := idx.distance(query, nbNode.vector)
			candidates = append(candidates, candidate{nb, d})
			results = append(results, candidate{nb, d})
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	if len(results) > ef {
		results = results[:ef]
	}
	out := make([]string, len(results))
	for i, c := range results {
		out[i] = c.id
	}
	return out
}

// selectNeighbors keeps the m closest candidates to query.
func (idx *Index) selectNeighbors(query []float32, ids []string, m int) []string {
	cands := make([]candidate, 0, len(ids))
	for _, id := range ids {
		n, ok := idx.nodes[id]
		if !ok {
			continue
		}
		cands = append(cands, candidate{id, idx.distance(query, n.vector)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > m {
		cands = cands[:m]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// Result is one hit from Search.
type Result struct {
	ID         string
	Similarity float64
}

// Search returns up to k live (non-tombstoned) nodes ordered by
// decreasing similarity. ef defaults to max(k, EfSearch) when <= 0.
// A search that discovers only tombstones returns an empty slice.
func (idx *Index) Search(query []float32, k int, ef int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entryPoint == "" {
		return nil
	}
	if ef <= 0 {
		ef = idx.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	entry := idx.entryPoint
	curDist := idx.distance(query, idx.nodes[entry].vector)
	for l := idx.maxLevel; l > 0; l-- {
		entry, curDist = idx.greedyDescend(entry, curDist, query, l)
	}
	_ = curDist

	candidates := idx.searchLayer(query, []string{entry}, ef, 0)

	var out []Result
	for _, id := range candidates {
		n, ok := idx.nodes[id]
		if !ok || n.tombstoned {
			continue
		}
		sim, _ := hashvec.Cosine(query, n.vector)
		out = append(out, Result{ID: id, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Delete soft-deletes id: the node stays linked in the graph (so
// connectivity for other nodes is preserved) but is filtered from
// every subsequent search result. A no-op if id is unknown or already
// tombstoned.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n, ok := idx.nodes[id]
	if !ok || n.tombstoned {
		return
	}
	n.tombstoned = true
	idx.tombstoneCount++
}

// TombstoneCount returns the number of soft-deleted nodes awaiting
// compaction.
func (idx *Index) TombstoneCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tombstoneCount
}

// Len returns the number of live (non-tombstoned) nodes.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count := 0
	for _, n := range idx.nodes {
		if !n.tombstoned {
			count++
		}
	}
	return count
}

// CompactResult reports what a Compact pass removed.
type CompactResult struct {
	Removed int
}

// Compact physically removes every tombstoned node: surviving
// neighbors have their adjacency lists rebuilt to drop references to
// removed nodes, and the entry point is reassigned if it was removed.
// Must be serialized against inserts/searches on the same index by
// the caller (the compaction scheduler owns that discipline).
func (idx *Index) Compact() CompactResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := 0
	for id, n := range idx.nodes {
		if n.tombstoned {
			delete(idx.nodes, id)
			removed++
		}
	}
	idx.tombstoneCount = 0

	for _, n := range idx.nodes {
		for l := range n.neighbors {
			filtered := n.neighbors[l][:0]
			for _, nb := range n.neighbors[l] {
				if _, ok := idx.nodes[nb]; ok {
					filtered = append(filtered, nb)
				}
			}
			n.neighbors[l] = filtered
		}
	}

	if _, ok := idx.nodes[idx.entryPoint]; !ok {
		idx.entryPoint = ""
		idx.maxLevel = 0
		best := -1
		for id, n := range idx.nodes {
			if n.level > best {
				best = n.level
				idx.entryPoint = id
				idx.maxLevel = n.level
			}
		}
	}

	return CompactResult{Removed: removed}
}
