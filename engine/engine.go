// Package engine connects live MIDI input to a synthesizer and a pattern
// matcher. MIDI callbacks feed commands to the audio goroutine through a
// CommandChannel and advance the matcher; the audio driver pulls samples
// through Process.
package engine

import (
	"sync"
	"time"

	"go-motif/debug"
	"go-motif/midi"
	"go-motif/pattern"
)

// Config holds the engine switches.
type Config struct {
	EnableMatching    bool
	EnableAudioOutput bool
	// VelocityScale multiplies note-on velocities; <= 0 leaves them alone.
	VelocityScale float64
	// Channel is the synthesizer channel every note is played on.
	Channel   uint8
	QueueSize int
	// MaxFrames is the largest period the audio driver is expected to ask
	// for.
	MaxFrames int
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EnableMatching:    true,
		EnableAudioOutput: true,
		VelocityScale:     1,
		QueueSize:         DefaultQueueSize,
		MaxFrames:         DefaultMaxFrames,
	}
}

// Dispatcher receives the ids of completed patterns. Dispatch is called on
// MIDI goroutines and must not block.
type Dispatcher interface {
	Dispatch(id pattern.ActionID) bool
}

// Fired records one completed pattern.
type Fired struct {
	Action pattern.ActionID
	At     time.Time
}

const (
	recentLen = 16
	firedLen  = 8
)

// Engine is the MIDI callback and the audio processor of the application.
type Engine struct {
	cfg      Config
	life     *Lifecycle
	cmds     *CommandChannel
	render   *RenderLoop
	velocity midi.VelocityMap
	dispatch Dispatcher

	// mu serializes MIDI callbacks from several ports. The audio goroutine
	// never takes it.
	mu      sync.Mutex
	matcher *pattern.Matcher
	held    [128]bool
	recent  []midi.Event
	fired   []Fired
	notes   uint64
	matches uint64

	// Notify TUI of updates
	updates chan struct{}
}

// New builds an engine around synth. The engine takes ownership of synth;
// dispatcher may be nil when nothing listens for completed patterns.
func New(cfg Config, lib *pattern.Library, synth Synthesizer, dispatcher Dispatcher) *Engine {
	life := NewLifecycle()
	cmds := NewCommandChannel(cfg.QueueSize)
	return &Engine{
		cfg:      cfg,
		life:     life,
		cmds:     cmds,
		render:   NewRenderLoop(synth, cmds, life, cfg.Channel, cfg.MaxFrames),
		velocity: midi.VelocityMap{Scale: cfg.VelocityScale},
		dispatch: dispatcher,
		matcher:  pattern.NewMatcher(lib),
		updates:  make(chan struct{}, 1),
	}
}

// HandleMIDI is the midi.Handler for every input port. Input is ignored
// once a stop has been requested.
func (e *Engine) HandleMIDI(status, data1, data2 uint8) {
	if !e.life.Running() {
		return
	}
	ev, ok := midi.Decode(status, data1, data2)
	if !ok {
		return
	}
	if ev.Kind == midi.KindOn {
		ev.Velocity = e.velocity.Apply(ev.Velocity)
	}

	if e.cfg.EnableAudioOutput {
		switch ev.Kind {
		case midi.KindOn:
			e.cmds.Send(NoteOnCommand(ev.Note, ev.Velocity))
		case midi.KindOff:
			e.cmds.Send(NoteOffCommand(ev.Note))
		}
	}

	var completed []pattern.ActionID
	e.mu.Lock()
	e.record(ev)
	if e.cfg.EnableMatching && ev.Kind == midi.KindOn {
		completed = e.matcher.Advance(ev.Note)
		now := time.Now()
		for _, id := range completed {
			e.matches++
			e.fired = appendRing(e.fired, Fired{Action: id, At: now}, firedLen)
		}
	}
	e.mu.Unlock()

	for _, id := range completed {
		debug.Log("engine", "pattern complete: %s (note %d)", id, ev.Note)
		if e.dispatch != nil {
			e.dispatch.Dispatch(id)
		}
	}
	e.notify()
}

func (e *Engine) record(ev midi.Event) {
	e.held[ev.Note&0x7F] = ev.Kind == midi.KindOn
	if ev.Kind == midi.KindOn {
		e.notes++
		e.recent = appendRing(e.recent, ev, recentLen)
	}
}

func appendRing[T any](s []T, v T, n int) []T {
	if len(s) == n {
		copy(s, s[1:])
		s = s[:n-1]
	}
	return append(s, v)
}

// StopAll silences every note. It may be called from any goroutine.
func (e *Engine) StopAll() {
	e.cmds.Send(StopAllCommand())
	e.mu.Lock()
	e.held = [128]bool{}
	e.mu.Unlock()
	e.notify()
}

// ResetMatcher drops every partial pattern match.
func (e *Engine) ResetMatcher() {
	e.mu.Lock()
	e.matcher.Reset()
	e.mu.Unlock()
	e.notify()
}

// Process is called by the audio driver for every period.
func (e *Engine) Process(out []float32, frames, channels int) {
	e.render.Process(out, frames, channels)
}

// Lifecycle returns the run state shared with the rest of the process.
func (e *Engine) Lifecycle() *Lifecycle {
	return e.life
}

// RenderErrors delivers render failures; see RenderLoop.Errors.
func (e *Engine) RenderErrors() <-chan error {
	return e.render.Errors()
}

// Close tears down the command channel. Later MIDI input is dropped.
func (e *Engine) Close() {
	e.cmds.Close()
}

// Updates is signalled whenever the display state changes.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Branch is one partial match: the notes matched so far and the names of
// the patterns it can still complete.
type Branch struct {
	Prefix   []pattern.Token
	Patterns []string
}

// Snapshot is a copy of the engine state for display.
type Snapshot struct {
	State  State
	Held   [128]bool
	Recent []midi.Event
	// Live holds every partial match, oldest first.
	Live  []Branch
	Fired []Fired

	Notes           uint64
	Matches         uint64
	DroppedCommands uint64
	Periods         uint64
	RenderFailures  uint64
}

// Snapshot returns the current display state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	lib := e.matcher.Library()
	live := e.matcher.Live()
	s := Snapshot{
		State:           e.life.State(),
		Held:            e.held,
		Recent:          append([]midi.Event(nil), e.recent...),
		Fired:           append([]Fired(nil), e.fired...),
		Notes:           e.notes,
		Matches:         e.matches,
		DroppedCommands: e.cmds.Dropped(),
		Periods:         e.render.Periods(),
		RenderFailures:  e.render.Failures(),
	}
	e.mu.Unlock()

	// The library is immutable, so the prefixes are built without the lock.
	for _, id := range live {
		s.Live = append(s.Live, Branch{Prefix: lib.Prefix(id), Patterns: lib.Candidates(id)})
	}
	return s
}
