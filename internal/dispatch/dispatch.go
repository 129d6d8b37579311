// Package dispatch hands matched records from the capture goroutine to a
// consumer that collects them on its own schedule.
package dispatch

import (
	"sync"

	"ipreporter/internal/models"

	"github.com/gammazero/deque"
)

// Dispatcher is an unbounded FIFO with one producer and one consumer.
// Send never waits on the consumer and Drain never waits on the producer
// beyond the short critical section around the queue.
type Dispatcher struct {
	mu      sync.Mutex
	pending deque.Deque[models.Record]
	notify  chan struct{}
}

// New creates an empty Dispatcher. One instance is reused across sessions.
func New() *Dispatcher {
	return &Dispatcher{notify: make(chan struct{}, 1)}
}

// Send enqueues rec behind everything sent before it.
func (d *Dispatcher) Send(rec models.Record) {
	d.mu.Lock()
	d.pending.PushBack(rec)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Drain returns everything queued so far, oldest first, or nil if nothing is queued.
func (d *Dispatcher) Drain() []models.Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.pending.AppendToSlice(nil)
	d.pending.Clear()
	return out
}

// Len reports how many records are waiting to be drained.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len()
}

// Ready is signalled after a Send. Consumers that would rather wait than poll
// select on it and then Drain; one signal may cover several records.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.notify
}
