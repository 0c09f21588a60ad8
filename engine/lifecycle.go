package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State is the process run state. It only moves forward.
type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Lifecycle is the run flag shared by the audio, MIDI and control
// goroutines. Reads are a single atomic load.
type Lifecycle struct {
	state    atomic.Int32
	stopping chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Running reports whether input should still be accepted and audio produced.
func (l *Lifecycle) Running() bool {
	return l.state.Load() == int32(Running)
}

// RequestStop moves Running to Stopping. It may be called from any goroutine
// any number of times; only the first call has an effect, and only that call
// returns true.
func (l *Lifecycle) RequestStop() bool {
	if !l.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return false
	}
	close(l.stopping)
	return true
}

// Stopping is closed once a stop has been requested.
func (l *Lifecycle) Stopping() <-chan struct{} {
	return l.stopping
}

// Done is closed once the state reaches Stopped.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.stopped
}

// Wait blocks until a stop is requested or ctx is done, sleeps for grace so
// release tails can play out, and then marks the lifecycle Stopped. A
// cancelled ctx requests the stop itself and skips the grace period.
func (l *Lifecycle) Wait(ctx context.Context, grace time.Duration) {
	select {
	case <-l.stopping:
		timer := time.NewTimer(grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	case <-ctx.Done():
		l.RequestStop()
	}
	l.markStopped()
}

func (l *Lifecycle) markStopped() {
	l.once.Do(func() {
		l.state.Store(int32(Stopped))
		close(l.stopped)
	})
}
