package graphstore

import (
	"math"
	"sync"
	"time"
)

// Reinforcer implements Hebbian synapse reinforcement: neurons that
// fire together within a short window have their connecting synapse
// strengthened, or a new associative synapse formed between them if
// none yet exists.
type Reinforcer struct {
	store    *Store
	onUpdate func(SynapseID, float64)

	mu                 sync.Mutex
	recentFires        map[NeuronID]time.Time
	coActivationWindow time.Duration

	learningRate         float64
	forgettingRate       float64
	minWeightToForm      float64
	maxSynapsesPerNeuron int
}

// ReinforcerConfig tunes a Reinforcer's learning parameters. Zero
// values fall back to the built-in defaults.
type ReinforcerConfig struct {
	CoActivationWindow   time.Duration
	LearningRate         float64
	ForgettingRate       float64
	MinWeightToForm      float64
	MaxSynapsesPerNeuron int

	// OnSynapseUpdated, when set, is called after every weight change
	// the reinforcer commits. Advisory only.
	OnSynapseUpdated func(SynapseID, float64)
}

func (c ReinforcerConfig) normalized() ReinforcerConfig {
	if c.CoActivationWindow <= 0 {
		c.CoActivationWindow = 5 * time.Second
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.ForgettingRate <= 0 {
		c.ForgettingRate = 0.01
	}
	if c.MinWeightToForm <= 0 {
		c.MinWeightToForm = 0.2
	}
	if c.MaxSynapsesPerNeuron <= 0 {
		c.MaxSynapsesPerNeuron = 50
	}
	return c
}

// NewReinforcer creates a Reinforcer that strengthens or forms
// synapses in store as neurons co-fire.
func NewReinforcer(store *Store, cfg ReinforcerConfig) *Reinforcer {
	cfg = cfg.normalized()
	return &Reinforcer{
		store:                store,
		onUpdate:             cfg.OnSynapseUpdated,
		recentFires:          make(map[NeuronID]time.Time),
		coActivationWindow:   cfg.CoActivationWindow,
		learningRate:         cfg.LearningRate,
		forgettingRate:       cfg.ForgettingRate,
		minWeightToForm:      cfg.MinWeightToForm,
		maxSynapsesPerNeuron: cfg.MaxSynapsesPerNeuron,
	}
}

// OnNeuronFired records a firing of id and strengthens (or forms)
// synapses against every neuron that fired within the co-activation
// window.
func (r *Reinforcer) OnNeuronFired(id NeuronID) error {
	r.mu.Lock()
	now := time.Now()
	var coActivated []NeuronID
	for other, firedAt := range r.recentFires {
		if other == id {
			continue
		}
		if now.Sub(firedAt) <= r.coActivationWindow {
			coActivated = append(coActivated, other)
		}
	}
	r.recentFires[id] = now
	for other, firedAt := range r.recentFires {
		if now.Sub(firedAt) > r.coActivationWindow*2 {
			delete(r.recentFires, other)
		}
	}
	r.mu.Unlock()

	for _, other := range coActivated {
		if err := r.strengthenOrCreate(id, other); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reinforcer) strengthenOrCreate(a, b NeuronID) error {
	sy, err := r.store.FindSynapseBetween(a, b)
	if err != nil {
		return err
	}
	if sy == nil {
		sy, err = r.store.FindSynapseBetween(b, a)
		if err != nil {
			return err
		}
	}

	if sy != nil {
		delta := r.learningRate * (1 - sy.Weight)
		if err := r.store.UpdateSynapseWeight(sy.ID, sy.Weight+delta); err != nil {
			return err
		}
		if r.onUpdate != nil {
			r.onUpdate(sy.ID, sy.Weight+delta)
		}
		return nil
	}

	outA, err := r.store.GetOutgoingSynapses(a)
	if err != nil {
		return err
	}
	outB, err := r.store.GetOutgoingSynapses(b)
	if err != nil {
		return err
	}
	if len(outA) >= r.maxSynapsesPerNeuron || len(outB) >= r.maxSynapsesPerNeuron {
		return nil
	}

	return r.store.AddSynapse(&Synapse{
		SourceID:      a,
		TargetID:      b,
		Type:          Associative,
		Weight:        r.minWeightToForm,
		Bidirectional: true,
	})
}

// DecayAll applies one forgetting-rate decay step to every synapse
// touching a neuron that has recently fired, keeping the decay cost
// proportional to active traffic rather than the whole graph.
func (r *Reinforcer) DecayAll() error {
	r.mu.Lock()
	ids := make([]NeuronID, 0, len(r.recentFires))
	for id := range r.recentFires {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	seen := make(map[SynapseID]bool)
	for _, id := range ids {
		out, err := r.store.GetOutgoingSynapses(id)
		if err != nil {
			return err
		}
		for _, sy := range out {
			if seen[sy.ID] {
				continue
			}
			seen[sy.ID] = true
			newWeight := math.Max(0, sy.Weight-r.forgettingRate)
			if err := r.store.UpdateSynapseWeight(sy.ID, newWeight); err != nil {
				return err
			}
			if r.onUpdate != nil {
				r.onUpdate(sy.ID, newWeight)
			}
		}
	}
	return nil
}

// SelfTune adjusts the learning rate and minimum formation weight
// based on the average synapse fan-out observed across neuronCount
// neurons with synapseCount total synapses, keeping graph density in
// a healthy range.
func (r *Reinforcer) SelfTune(neuronCount, synapseCount int) {
	if neuronCount == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	avgSynapses := float64(synapseCount*2) / float64(neuronCount)
	if avgSynapses < 3 {
		r.learningRate = math.Min(0.3, r.learningRate*1.1)
		r.minWeightToForm = math.Max(0.1, r.minWeightToForm*0.9)
	}
	if avgSynapses > 20 {
		r.learningRate = math.Max(0.05, r.learningRate*0.9)
		r.minWeightToForm = math.Min(0.5, r.minWeightToForm*1.1)
	}
}

// Stats reports the reinforcer's current tuning parameters.
func (r *Reinforcer) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"recent_fires_count":   len(r.recentFires),
		"learning_rate":        r.learningRate,
		"forgetting_rate":      r.forgettingRate,
		"min_weight_to_form":   r.minWeightToForm,
		"co_activation_window": r.coActivationWindow.String(),
		"max_synapses_per_neuron": r.maxSynapsesPerNeuron,
	}
}
