// Package action runs the side effects attached to completed patterns.
// Matching happens on MIDI goroutines, which must never block, so completed
// ids are queued to a Dispatcher and fired from its own worker goroutine.
package action

import (
	"context"
	"sync/atomic"

	"go-motif/debug"
	"go-motif/pattern"
)

// DefaultQueueSize is the number of ids that may wait for the worker.
const DefaultQueueSize = 64

// Dispatcher serializes action firing onto a single worker goroutine.
// Call Run once; Dispatch may be called from any goroutine.
type Dispatcher struct {
	ch      chan pattern.ActionID
	sink    Sink
	fired   atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher firing into sink with a fixed buffer.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultQueueSize
	}
	return &Dispatcher{ch: make(chan pattern.ActionID, buffer), sink: sink}
}

// Dispatch queues id without blocking. It reports false, and counts a drop,
// when the queue is full.
func (d *Dispatcher) Dispatch(id pattern.ActionID) bool {
	select {
	case d.ch <- id:
		return true
	default:
		d.dropped.Add(1)
		debug.LogEvery(10, "action", "queue full, dropping %s", id)
		return false
	}
}

// Run fires queued ids until ctx is done. Ids still queued at that point
// are fired before Run returns, with a context that is no longer cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			d.drain(context.WithoutCancel(ctx))
			return nil
		}
		select {
		case <-ctx.Done():
		case id := <-d.ch:
			d.fire(ctx, id)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case id := <-d.ch:
			d.fire(ctx, id)
		default:
			return
		}
	}
}

func (d *Dispatcher) fire(ctx context.Context, id pattern.ActionID) {
	d.fired.Add(1)
	if err := d.sink.Fire(ctx, id); err != nil {
		d.failed.Add(1)
		debug.Logger("action").Error("action failed", "action", id, "err", err)
	}
}

// Fired returns the number of ids handed to the sink.
func (d *Dispatcher) Fired() uint64 {
	return d.fired.Load()
}

// Failed returns the number of ids whose sink returned an error.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Dropped returns the number of ids dropped because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
