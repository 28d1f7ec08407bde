// Package pipeline is the parallel record-transformation core (spec §2,
// components 4-6): a barrier-coordinated worker pool that mutates shared
// data block buffers in place, and the controller that streams blocks
// through it.
package pipeline

import "sync"

// Barrier is the two-sided rendezvous between one controller and exactly
// target worker goroutines (spec §4.5). It is a near-literal port of
// original_source/nfanon.c's pthread_barrier_t: a mutex guarding a single
// waiting counter, with two condition variables standing in for the two
// pthread_cond_t fields.
type Barrier struct {
	mu             sync.Mutex
	workerCond     *sync.Cond
	controllerCond *sync.Cond
	waiting        int
	target         int
}

// NewBarrier creates a barrier for exactly target workers.
func NewBarrier(target int) *Barrier {
	b := &Barrier{target: target}
	b.workerCond = sync.NewCond(&b.mu)
	b.controllerCond = sync.NewCond(&b.mu)
	return b
}

// WorkerWait parks a worker at the barrier: increments waiting, wakes the
// controller once every worker has arrived, then blocks until the
// controller releases this round.
func (b *Barrier) WorkerWait() {
	b.mu.Lock()
	b.waiting++
	if b.waiting >= b.target {
		b.controllerCond.Signal()
	}
	b.workerCond.Wait()
	b.mu.Unlock()
}

// ControllerWait blocks until every worker has called WorkerWait for this
// round. Its return is the only place the controller may safely assume all
// workers are parked and not touching a published CurrentBlock.
func (b *Barrier) ControllerWait() {
	b.mu.Lock()
	for b.waiting < b.target {
		b.controllerCond.Wait()
	}
	b.mu.Unlock()
}

// ControllerRelease resets the waiting count and wakes every parked worker.
// The controller must only call this after publishing new work (or a nil
// CurrentBlock to signal shutdown) into every worker's parameter record.
func (b *Barrier) ControllerRelease() {
	b.mu.Lock()
	b.waiting = 0
	b.workerCond.Broadcast()
	b.mu.Unlock()
}

// Destroy is a documentation no-op: sync.Mutex/sync.Cond need no explicit
// teardown, but the barrier protocol (spec §4.5) names the operation, and
// callers use it to mark "no goroutine will reference this barrier again".
func (b *Barrier) Destroy() {}
