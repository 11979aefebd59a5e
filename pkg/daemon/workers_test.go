package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/core"
	"github.com/denizumutdereli/graphdb/pkg/embedding"
)

func newTestEngine(t *testing.T) *core.Engine {
	t.Helper()
	e, err := core.Open(core.Config{DataDir: t.TempDir(), EmbeddingDim: 8}, embedding.NewDeterministicStub(8))
	if err != nil {
		t.Fatalf("core.Open() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestDaemonManagerTicksDecay(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n, err := e.IngestText(ctx, "seed neuron", "doc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil {
		t.Fatal("expected a neuron")
	}

	dm := NewDaemonManager(e, 20*time.Millisecond)
	dm.Start()
	defer dm.Stop()

	time.Sleep(80 * time.Millisecond)
}

func TestDaemonManagerStopIsIdempotentAfterStart(t *testing.T) {
	e := newTestEngine(t)
	dm := NewDaemonManager(e, time.Minute)
	dm.Start()
	dm.Stop()
}

func TestDaemonManagerDefaultsZeroInterval(t *testing.T) {
	e := newTestEngine(t)
	dm := NewDaemonManager(e, 0)
	if dm.interval() != time.Minute {
		t.Fatalf("interval() = %v, want 1m default", dm.interval())
	}
	dm.Start()
	dm.Stop()
}
