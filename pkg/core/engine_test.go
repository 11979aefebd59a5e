package core

import (
	"context"
	"testing"

	"github.com/denizumutdereli/graphdb/pkg/embedding"
	"github.com/denizumutdereli/graphdb/pkg/events"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Config{DataDir: t.TempDir(), EmbeddingDim: 8}, embedding.NewDeterministicStub(8))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineIngestPublishesNeuronCreated(t *testing.T) {
	e := newTestEngine(t)

	var fired bool
	e.Events.On(events.NeuronCreated, func(_ events.Topic, _ any) { fired = true })

	n, err := e.IngestText(context.Background(), "hello world", "doc", []string{"greeting"})
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected a populated neuron id")
	}

	got, err := e.Graph.GetNeuron(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected neuron to be retrievable after ingest")
	}
	if !fired {
		t.Fatal("expected neuron:created handler to fire")
	}
}

func TestEngineIngestWithoutEmbedderFails(t *testing.T) {
	e, err := Open(Config{DataDir: t.TempDir(), EmbeddingDim: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.IngestText(context.Background(), "text", "doc", nil); err != ErrEmbeddingUnavailable {
		t.Fatalf("IngestText() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEngineDeleteNeuronRemovesSynapses(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, err := e.IngestText(ctx, "neuron a", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.IngestText(ctx, "neuron b", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}

	sy := &graphstore.Synapse{
		ID:       graphstore.NewSynapseID(),
		SourceID: a.ID,
		TargetID: b.ID,
		Type:     graphstore.Causal,
		Weight:   0.8,
	}
	if err := e.AddSynapse(sy); err != nil {
		t.Fatal(err)
	}

	if err := e.DeleteNeuron(a.ID); err != nil {
		t.Fatal(err)
	}

	got, err := e.Graph.GetNeuron(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected deleted neuron to be absent")
	}

	out, err := e.Records.GetOutgoingSynapses(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no outgoing synapses after delete, got %d", len(out))
	}
}

func TestEngineFireFormsSynapseOnCoActivation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, err := e.IngestText(ctx, "neuron a", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.IngestText(ctx, "neuron b", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Fire(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.Fire(b.ID); err != nil {
		t.Fatal(err)
	}

	out, err := e.Records.GetOutgoingSynapses(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].TargetID != a.ID {
		t.Fatalf("expected a formed synapse b->a, got %+v", out)
	}
}

func TestEngineVerifyNeuron(t *testing.T) {
	e := newTestEngine(t)

	var verified bool
	e.Events.On(events.MerkleVerified, func(_ events.Topic, _ any) { verified = true })

	n, err := e.IngestText(context.Background(), "verify this content end to end", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.VerifyNeuron(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report == nil {
		t.Fatal("expected a report for an existing neuron")
	}
	if !report.MerkleValid || !report.ChunksValid {
		t.Fatalf("expected a clean report, got %+v", report)
	}
	if len(report.Missing) != 0 || len(report.Corrupted) != 0 {
		t.Fatalf("expected no missing/corrupted chunks, got %+v", report)
	}
	if !verified {
		t.Fatal("expected merkle:verified handler to fire")
	}

	report, err = e.VerifyNeuron("no-such-neuron")
	if err != nil {
		t.Fatal(err)
	}
	if report != nil {
		t.Fatalf("expected nil report for unknown neuron, got %+v", report)
	}
}

func TestEngineAttractorEvents(t *testing.T) {
	e := newTestEngine(t)

	var created bool
	e.Events.On(events.AttractorCreate, func(_ events.Topic, _ any) { created = true })

	emb := make([]float32, 8)
	emb[0] = 1
	a := e.CreateAttractor("goal-1", "goal", "", emb, 0.5, 8, nil)
	if a == nil || !created {
		t.Fatal("expected attractor created and attractor:created handler fired")
	}
}

func TestEngineValidatesContentOnIngest(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.IngestText(context.Background(), "   ", "doc", nil); err != ErrInvalidContent {
		t.Fatalf("IngestText() error = %v, want ErrInvalidContent", err)
	}
}
