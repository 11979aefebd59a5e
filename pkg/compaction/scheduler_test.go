package compaction

import (
	"errors"
	"testing"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

type fakeIndex struct {
	tombstones int
	removed    int
	calls      int
}

func (f *fakeIndex) TombstoneCount() int { return f.tombstones }

func (f *fakeIndex) Compact() hnsw.CompactResult {
	f.calls++
	removed := f.removed
	f.tombstones = 0
	return hnsw.CompactResult{Removed: removed}
}

type fakeStore struct {
	fail  bool
	calls int
}

func (f *fakeStore) Compact() error {
	f.calls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func TestMaybeCompactNoopBelowThreshold(t *testing.T) {
	idx := &fakeIndex{tombstones: 5}
	s := New(Config{TombstoneThreshold: 50, Interval: time.Hour}, idx)
	s.MaybeCompact()
	if idx.calls != 0 {
		t.Fatalf("expected no compaction below threshold, got %d calls", idx.calls)
	}
}

func TestMaybeCompactRunsAtThreshold(t *testing.T) {
	idx := &fakeIndex{tombstones: 50, removed: 50}
	s := New(Config{TombstoneThreshold: 50, Interval: time.Hour}, idx)
	s.MaybeCompact()
	if idx.calls != 1 {
		t.Fatalf("expected one compaction at threshold, got %d calls", idx.calls)
	}
	stats := s.CurrentStats()
	if stats.TotalCompactions != 1 || stats.TotalHnswRemoved != 50 {
		t.Fatalf("stats = %+v, want 1 compaction / 50 removed", stats)
	}
}

func TestForceCompactAlwaysRuns(t *testing.T) {
	idx := &fakeIndex{tombstones: 1}
	s := New(DefaultConfig(), idx)
	stats := s.ForceCompact()
	if stats.Running {
		t.Fatal("ForceCompact() result reported Running=true after completion")
	}
	if idx.calls != 1 {
		t.Fatalf("expected ForceCompact to always invoke Compact, got %d calls", idx.calls)
	}
}

func TestCompactStoreFailureDoesNotAbortSweep(t *testing.T) {
	idx := &fakeIndex{tombstones: 1}
	failing := &fakeStore{fail: true}
	ok := &fakeStore{}
	s := New(DefaultConfig(), idx, failing, ok)
	s.ForceCompact()
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("expected both stores to be compacted despite one failing: failing=%d ok=%d", failing.calls, ok.calls)
	}
}

func TestReentrantForceCompactIsNoop(t *testing.T) {
	idx := &fakeIndex{tombstones: 1}
	s := New(DefaultConfig(), idx)
	s.running = 1 // simulate a pass already in flight
	stats := s.ForceCompact()
	if !stats.Running {
		t.Fatal("expected Running=true when a pass is already in progress")
	}
	if idx.calls != 0 {
		t.Fatalf("expected no compaction while already running, got %d calls", idx.calls)
	}
}
