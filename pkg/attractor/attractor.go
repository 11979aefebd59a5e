// Package attractor implements the goal-state influence and
// path-search model: declared attractors decay over time, exert an
// influence field over embeddings, and can be searched for via a
// greedy best-first walk over the synapse graph.
package attractor

import (
	"time"

	"github.com/denizumutdereli/graphdb/pkg/graph"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/hashvec"
)

// Attractor is a declared goal state in embedding space.
type Attractor struct {
	ID          string
	Name        string
	Description string
	Embedding   []float32
	Strength    float64 // in [0,1]
	Priority    int     // in [1,10]
	Probability float64 // in [0,1]
	Deadline    *time.Time
	CreatedAt   time.Time
}

// Config controls attractor decay and path search.
type Config struct {
	DecayFactor         float64 // multiplied into strength per tick, default 0.99
	FloorStrength       float64 // attractors below this are removed, default 0.01
	BottleneckThreshold float64 // step probability below this marks a bottleneck, default 0.3
}

func (c Config) normalized() Config {
	if c.DecayFactor <= 0 {
		c.DecayFactor = 0.99
	}
	if c.FloorStrength <= 0 {
		c.FloorStrength = 0.01
	}
	if c.BottleneckThreshold <= 0 {
		c.BottleneckThreshold = DefaultBottleneckThreshold
	}
	return c
}

// Model owns a set of attractors and the graph they search paths over.
type Model struct {
	cfg         Config
	graph       *graph.Manager
	attractors  map[string]*Attractor
	transitions int
}

// New creates an empty attractor Model bound to m.
func New(cfg Config, m *graph.Manager) *Model {
	return &Model{cfg: cfg.normalized(), graph: m, attractors: make(map[string]*Attractor)}
}

// CreateAttractor declares a new attractor.
func (mdl *Model) CreateAttractor(id, name, description string, embedding []float32, strength float64, priority int, deadline *time.Time) *Attractor {
	a := &Attractor{
		ID: id, Name: name, Description: description, Embedding: embedding,
		Strength: strength, Priority: priority, Deadline: deadline, CreatedAt: time.Now().UTC(),
	}
	mdl.attractors[id] = a
	return a
}

// UpdateAttractor mutates an existing attractor's mutable fields; it
// is a no-op if id is unknown.
func (mdl *Model) UpdateAttractor(id string, strength *float64, priority *int, probability *float64) {
	a, ok := mdl.attractors[id]
	if !ok {
		return
	}
	if strength != nil {
		a.Strength = *strength
	}
	if priority != nil {
		a.Priority = *priority
	}
	if probability != nil {
		a.Probability = *probability
	}
}

// GetActiveAttractors returns every currently-declared attractor whose
// strength is at or above the configured floor.
func (mdl *Model) GetActiveAttractors() []*Attractor {
	out := make([]*Attractor, 0, len(mdl.attractors))
	for _, a := range mdl.attractors {
		if a.Strength >= mdl.cfg.FloorStrength {
			out = append(out, a)
		}
	}
	return out
}

// DecayAttractors multiplies every attractor's strength by the
// configured decay factor and removes those that fall below the
// configured floor. Returns the ids removed.
func (mdl *Model) DecayAttractors() []string {
	var removed []string
	for id, a := range mdl.attractors {
		a.Strength *= mdl.cfg.DecayFactor
		if a.Strength < mdl.cfg.FloorStrength {
			delete(mdl.attractors, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// CalculateInfluence returns, for every active attractor whose
// influence is positive, cosine(embedding, attractor.embedding) *
// strength * (priority/10).
func (mdl *Model) CalculateInfluence(embedding []float32) (map[string]float64, error) {
	out := make(map[string]float64)
	for id, a := range mdl.attractors {
		if a.Strength < mdl.cfg.FloorStrength {
			continue
		}
		cos, err := hashvec.Cosine(embedding, a.Embedding)
		if err != nil {
			continue
		}
		influence := cos * a.Strength * (float64(a.Priority) / 10)
		if influence > 0 {
			out[id] = influence
		}
	}
	return out, nil
}

// Step is one hop of a path found by FindPathToAttractor.
type Step struct {
	NeuronID    graphstore.NeuronID
	Probability float64 // max(edge weight, heuristic) for the hop into this step
}

// Path is the result of FindPathToAttractor.
type Path struct {
	Steps          []Step
	Probability    float64               // product of per-step probabilities
	EstimatedSteps int                   // len(Steps)
	Bottlenecks    []graphstore.NeuronID // ids whose best outgoing step fell below the bottleneck threshold
}

// DefaultBottleneckThreshold marks path steps weaker than this as bottlenecks.
const DefaultBottleneckThreshold = 0.3

// FindPathToAttractor performs a greedy best-first walk from start
// toward attractorID: at each hop it follows the outgoing synapse
// whose target is closest (by cosine similarity to the attractor's
// embedding) among the current neuron's neighbors, using
// max(edgeWeight, heuristic) as that hop's step probability. The walk
// terminates after maxHops or when no outgoing synapses remain.
func (mdl *Model) FindPathToAttractor(start graphstore.NeuronID, attractorID string, maxHops int) (Path, bool) {
	a, ok := mdl.attractors[attractorID]
	if !ok {
		return Path{}, false
	}
	if maxHops <= 0 {
		maxHops = 10
	}

	current := start
	probability := 1.0
	var bottlenecks []graphstore.NeuronID
	path := Path{}

	visited := map[graphstore.NeuronID]bool{start: true}
	for hop := 0; hop < maxHops; hop++ {
		synapses, err := mdl.graph.Store().GetOutgoingSynapses(current)
		if err != nil || len(synapses) == 0 {
			break
		}

		var bestTarget graphstore.NeuronID
		var bestHeuristic float64 = -2 // below any cosine
		var bestStep float64
		for _, sy := range synapses {
			if visited[sy.TargetID] {
				continue
			}
			n, err := mdl.graph.Store().GetNeuron(sy.TargetID)
			if err != nil || n == nil || len(n.Embedding) == 0 {
				continue
			}
			heuristic, err := hashvec.Cosine(n.Embedding, a.Embedding)
			if err != nil {
				continue
			}
			step := sy.Weight
			if heuristic > step {
				step = heuristic
			}
			if heuristic > bestHeuristic || (sy.TargetID == bestTarget && step > bestStep) {
				bestHeuristic = heuristic
				bestStep = step
				bestTarget = sy.TargetID
			}
		}
		if bestTarget == "" {
			break
		}

		visited[bestTarget] = true
		if bestStep < mdl.cfg.BottleneckThreshold {
			bottlenecks = append(bottlenecks, current)
		}
		probability *= bestStep
		path.Steps = append(path.Steps, Step{NeuronID: bestTarget, Probability: bestStep})
		current = bestTarget

		if bestHeuristic > 1-1e-9 {
			break // converged: next hop is a near-perfect match to the attractor
		}
	}

	if len(path.Steps) == 0 {
		return Path{}, false
	}
	path.Probability = probability
	path.EstimatedSteps = len(path.Steps)
	path.Bottlenecks = bottlenecks
	mdl.transitions++
	return path, true
}

// GetStats summarizes the attractor population.
type Stats struct {
	TotalAttractors  int
	ActiveAttractors int
	Transitions      int
}

// GetStats returns a summary of the attractor population: the total
// declared, those at or above the floor strength, and the number of
// successful FindPathToAttractor computations so far.
func (mdl *Model) GetStats() Stats {
	s := Stats{Transitions: mdl.transitions}
	for _, a := range mdl.attractors {
		s.TotalAttractors++
		if a.Strength >= mdl.cfg.FloorStrength {
			s.ActiveAttractors++
		}
	}
	return s
}
