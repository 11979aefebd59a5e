// Package writequeue implements the single-task-at-a-time execution
// discipline the rest of the engine linearizes adjacency mutations
// through: one consumer goroutine per queue, a bounded backlog, and a
// drop-on-overflow policy so a slow writer never blocks its caller.
package writequeue

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// ErrDropped is returned by Submit when the backlog was full and the
// task could never run.
var ErrDropped = errors.New("writequeue: task dropped, backlog full")

// Task is a unit of fire-and-forget work. A panic inside a Task is
// recovered and logged; nothing is surfaced to the submitter.
type Task func()

// Queue serializes Task execution: at most one task runs at a time, in
// the order it was enqueued. A Queue is scoped to a single key (for
// example a neuron id) by its owner; two Queues never interleave with
// each other, only tasks submitted to the same Queue are ordered
// relative to one another.
type Queue struct {
	label      string
	maxPending int

	tasks chan Task

	pending uint64
	dropped uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue identified by label (used only for diagnostics)
// with a backlog bounded to maxPending tasks. Tasks submitted once the
// backlog is full are dropped and counted, never blocking the caller.
func New(label string, maxPending int) *Queue {
	if maxPending <= 0 {
		maxPending = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		label:      label,
		maxPending: maxPending,
		tasks:      make(chan Task, maxPending),
		ctx:        ctx,
		cancel:     cancel,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case t := <-q.tasks:
			q.exec(t)
		}
	}
}

func (q *Queue) exec(t Task) {
	atomic.AddUint64(&q.pending, ^uint64(0)) // pending--
	defer func() {
		if r := recover(); r != nil {
			log.Printf("writequeue[%s]: task panicked: %v", q.label, r)
		}
	}()
	t()
}

func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.exec(t)
		default:
			return
		}
	}
}

// Enqueue submits a fire-and-forget task. If the backlog is already at
// maxPending, the task is dropped and DroppedCount increments; the
// call never blocks. Reports whether the task was accepted.
func (q *Queue) Enqueue(t Task) bool {
	atomic.AddUint64(&q.pending, 1)
	select {
	case q.tasks <- t:
		return true
	default:
		atomic.AddUint64(&q.pending, ^uint64(0))
		atomic.AddUint64(&q.dropped, 1)
		log.Printf("writequeue[%s]: backlog full (%d), dropping task", q.label, q.maxPending)
		return false
	}
}

// Submit runs a task and blocks until it completes, returning its
// error. Used by the graph store's synapse mutations (add, remove,
// weight update), which must not hide failures the way Enqueue does.
func (q *Queue) Submit(fn func() error) error {
	done := make(chan error, 1)
	accepted := q.Enqueue(func() {
		done <- fn()
	})
	if !accepted {
		return ErrDropped
	}
	select {
	case err := <-done:
		return err
	case <-q.ctx.Done():
		return context.Canceled
	}
}

// PendingCount returns the number of tasks queued and not yet started;
// a task stops being counted when the worker picks it up.
func (q *Queue) PendingCount() int {
	return int(atomic.LoadUint64(&q.pending))
}

// DroppedCount returns the total number of tasks dropped for
// backpressure since the queue was created.
func (q *Queue) DroppedCount() int {
	return int(atomic.LoadUint64(&q.dropped))
}

// Close stops the queue after draining any already-enqueued tasks.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}
