// Package daemon runs the background maintenance loop that ticks
// attractor decay and Hebbian synapse forgetting on an interval.
// Compaction runs its own ticker inside pkg/compaction.Scheduler, so
// this manager's only job is the periodic work the engine facade does
// not already self-schedule.
package daemon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/core"
)

// DaemonManager runs the attractor decay tick in the background.
type DaemonManager struct {
	engine *core.Engine

	decayInterval time.Duration
	intervalMu    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastCompactions uint64
}

// NewDaemonManager creates a manager that will decay e's attractor
// field every interval once Start is called. A zero interval defaults
// to one minute.
func NewDaemonManager(e *core.Engine, interval time.Duration) *DaemonManager {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		engine:        e,
		decayInterval: interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the decay loop in a background goroutine.
func (dm *DaemonManager) Start() {
	dm.wg.Add(1)
	go dm.decayLoop()
	log.Println("daemon: attractor decay loop started")
}

// Stop cancels the loop and waits for it to exit.
func (dm *DaemonManager) Stop() {
	dm.cancel()
	dm.wg.Wait()
	log.Println("daemon: attractor decay loop stopped")
}

// SetInterval changes the decay tick interval for subsequent ticks.
func (dm *DaemonManager) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	dm.intervalMu.Lock()
	dm.decayInterval = d
	dm.intervalMu.Unlock()
}

func (dm *DaemonManager) interval() time.Duration {
	dm.intervalMu.RLock()
	defer dm.intervalMu.RUnlock()
	return dm.decayInterval
}

func (dm *DaemonManager) decayLoop() {
	defer dm.wg.Done()

	timer := time.NewTimer(dm.interval())
	defer timer.Stop()

	for {
		select {
		case <-dm.ctx.Done():
			return
		case <-timer.C:
			removed := dm.engine.DecayAttractors()
			if len(removed) > 0 {
				log.Printf("daemon: decayed %d attractor(s) below floor", len(removed))
			}
			if err := dm.engine.Reinforce.DecayAll(); err != nil {
				log.Printf("daemon: synapse decay pass failed: %v", err)
			}
			dm.engine.Metrics.SetTombstoneCount(dm.engine.Index.TombstoneCount())
			if stats := dm.engine.Compactor.CurrentStats(); stats.TotalCompactions > dm.lastCompactions {
				for i := dm.lastCompactions; i < stats.TotalCompactions; i++ {
					dm.engine.Metrics.CompactionRun()
				}
				dm.lastCompactions = stats.TotalCompactions
			}
			timer.Reset(dm.interval())
		}
	}
}
