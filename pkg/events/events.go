// Package events implements the advisory publish/subscribe hook
// surface used across the engine (neuron, synapse, merkle, and
// attractor lifecycle notifications). Handlers are registered per
// topic and invoked synchronously; a handler that panics or is simply
// absent never affects the caller. This is a notification
// side-channel, not a transactional outbox.
package events

import "log"

// Topic names a published event kind.
type Topic string

const (
	NeuronCreated   Topic = "neuron:created"
	NeuronUpdated   Topic = "neuron:updated"
	NeuronDeleted   Topic = "neuron:deleted"
	SynapseFormed   Topic = "synapse:formed"
	SynapseUpdated  Topic = "synapse:updated"
	SynapseRemoved  Topic = "synapse:removed"
	MerkleRootChg   Topic = "merkle:root_changed"
	MerkleVerified  Topic = "merkle:verified"
	AttractorCreate Topic = "attractor:created"
	AttractorDecay  Topic = "attractor:decayed"
	AttractorActive Topic = "attractor:activated"
)

// Handler receives a topic and an opaque payload. Handlers are
// advisory: a panic is recovered and logged, never propagated to the
// publisher.
type Handler func(topic Topic, payload any)

// Bus is a simple, synchronous, in-process publish/subscribe registry.
type Bus struct {
	handlers map[Topic][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

// On registers h to be called whenever topic is published.
func (b *Bus) On(topic Topic, h Handler) {
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish invokes every handler registered for topic, in registration
// order. Handler failures are logged, not surfaced to the publisher.
func (b *Bus) Publish(topic Topic, payload any) {
	for _, h := range b.handlers[topic] {
		b.safeInvoke(topic, h, payload)
	}
}

func (b *Bus) safeInvoke(topic Topic, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler for %s panicked: %v", topic, r)
		}
	}()
	h(topic, payload)
}
