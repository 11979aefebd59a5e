// Package compaction implements the periodic + threshold-driven
// physical-deletion scheduler: one HNSW index and zero or more
// compactable key-value stores, swept through a single critical
// section so overlapping triggers never run concurrently.
package compaction

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/hnsw"
)

// HNSWIndex is the capability compaction needs from an ANN index.
type HNSWIndex interface {
	TombstoneCount() int
	Compact() hnsw.CompactResult
}

// CompactableStore is a KV store offering range compaction.
type CompactableStore interface {
	Compact() error
}

// Config controls compaction triggers.
type Config struct {
	TombstoneThreshold int
	Interval           time.Duration
}

// DefaultConfig returns the default compaction triggers.
func DefaultConfig() Config {
	return Config{TombstoneThreshold: 50, Interval: 5 * time.Minute}
}

func (c Config) normalized() Config {
	if c.TombstoneThreshold <= 0 {
		c.TombstoneThreshold = 50
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	return c
}

// Stats reports the scheduler's current state.
type Stats struct {
	Running           bool
	PendingTombstones int
	TotalCompactions  uint64
	TotalHnswRemoved  uint64
	LastRunAt         time.Time
}

// Scheduler owns one HNSW index and the KV stores that accompany it.
type Scheduler struct {
	cfg    Config
	index  HNSWIndex
	stores []CompactableStore

	running int32 // atomic re-entrancy guard

	mu               sync.Mutex
	createdAt        time.Time
	lastRunAt        time.Time
	totalCompactions uint64
	totalHnswRemoved uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler for index, compacting stores alongside it.
func New(cfg Config, index HNSWIndex, stores ...CompactableStore) *Scheduler {
	return &Scheduler{cfg: cfg.normalized(), index: index, stores: stores, createdAt: time.Now(), stop: make(chan struct{})}
}

// Start launches the background timer that calls maybeCompact on
// cfg.Interval. The timer is detached: it never keeps the process
// alive by itself; call Stop to release it.
func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.MaybeCompact()
			}
		}
	}()
}

// Stop releases the background timer.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// MaybeCompact is fire-and-forget and safe to call after every
// delete: it runs a pass only if a trigger condition holds, and
// re-entry while a pass is already running is a silent no-op.
func (s *Scheduler) MaybeCompact() {
	if s.index.TombstoneCount() < s.cfg.TombstoneThreshold && time.Since(s.lastRunAtSnapshot()) < s.cfg.Interval {
		return
	}
	s.runOnce()
}

// ForceCompact is the awaitable counterpart: it always runs a pass
// (subject to the same re-entrancy guard) and blocks until it
// completes.
func (s *Scheduler) ForceCompact() Stats {
	return s.runOnce()
}

// lastRunAtSnapshot returns when the last pass ran, or when the
// scheduler was created if no pass has run yet.
func (s *Scheduler) lastRunAtSnapshot() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRunAt.IsZero() {
		return s.createdAt
	}
	return s.lastRunAt
}

func (s *Scheduler) runOnce() Stats {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return Stats{Running: true}
	}
	defer atomic.StoreInt32(&s.running, 0)

	removed := s.index.Compact().Removed

	for _, store := range s.stores {
		if err := store.Compact(); err != nil {
			log.Printf("compaction: store compact failed: %v", err)
		}
	}

	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.totalCompactions++
	s.totalHnswRemoved += uint64(removed)
	snap := Stats{
		Running:           false,
		PendingTombstones: s.index.TombstoneCount(),
		TotalCompactions:  s.totalCompactions,
		TotalHnswRemoved:  s.totalHnswRemoved,
		LastRunAt:         s.lastRunAt,
	}
	s.mu.Unlock()
	return snap
}

// CurrentStats returns the scheduler's stats without triggering a pass.
func (s *Scheduler) CurrentStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Running:           atomic.LoadInt32(&s.running) == 1,
		PendingTombstones: s.index.TombstoneCount(),
		TotalCompactions:  s.totalCompactions,
		TotalHnswRemoved:  s.totalHnswRemoved,
		LastRunAt:         s.lastRunAt,
	}
}
