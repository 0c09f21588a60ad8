package engine

import (
	"sync/atomic"

	errgo "gopkg.in/errgo.v1"
)

// Synthesizer is the sound generator driven by the render loop.
// *meltysynth.Synthesizer satisfies it directly.
type Synthesizer interface {
	NoteOn(channel, key, velocity int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// ErrRender is the cause of every error reported on RenderLoop.Errors.
var ErrRender = errgo.New("render failed")

// DefaultMaxFrames is the scratch size used when none is configured.
const DefaultMaxFrames = 4096

// RenderLoop fills audio buffers on the audio goroutine. It owns the
// synthesizer: nothing else may touch it once the loop exists.
type RenderLoop struct {
	synth   Synthesizer
	cmds    *CommandChannel
	life    *Lifecycle
	channel int32

	pending []Command
	left    []float32
	right   []float32

	errs     chan error
	periods  atomic.Uint64
	failures atomic.Uint64
}

// NewRenderLoop preallocates everything Process needs for periods of up to
// maxFrames frames.
func NewRenderLoop(s Synthesizer, cmds *CommandChannel, life *Lifecycle, channel uint8, maxFrames int) *RenderLoop {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &RenderLoop{
		synth:   s,
		cmds:    cmds,
		life:    life,
		channel: int32(channel),
		pending: make([]Command, 0, cmds.Cap()),
		left:    make([]float32, maxFrames),
		right:   make([]float32, maxFrames),
		errs:    make(chan error, 1),
	}
}

// Process writes frames interleaved frames of channels samples each into
// out. With one channel only the left signal is written; with more than two
// the extra channels are silent. Process never blocks, never logs and does
// not allocate once the scratch buffers fit the period.
func (r *RenderLoop) Process(out []float32, frames, channels int) {
	if channels <= 0 || frames <= 0 {
		return
	}
	if frames*channels > len(out) {
		frames = len(out) / channels
	}
	out = out[:frames*channels]

	if !r.life.Running() {
		clear(out)
		return
	}
	r.periods.Add(1)
	if !r.render(frames) {
		clear(out)
		return
	}

	left, right := r.left[:frames], r.right[:frames]
	switch channels {
	case 1:
		copy(out, left)
	case 2:
		for i := 0; i < frames; i++ {
			out[2*i] = left[i]
			out[2*i+1] = right[i]
		}
	default:
		for i := 0; i < frames; i++ {
			f := out[i*channels : (i+1)*channels]
			f[0] = left[i]
			f[1] = right[i]
			clear(f[2:])
		}
	}
}

// render applies the queued commands and renders one period into the
// scratch buffers. A panic anywhere in the synthesizer is contained here.
func (r *RenderLoop) render(frames int) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.failures.Add(1)
			select {
			case r.errs <- errgo.WithCausef(nil, ErrRender, "render failed: %v", p):
			default:
			}
			ok = false
		}
	}()

	r.pending = r.cmds.Drain(r.pending[:0])
	for _, cmd := range r.pending {
		r.apply(cmd)
	}

	if frames > len(r.left) {
		r.left = make([]float32, frames)
		r.right = make([]float32, frames)
	}
	r.synth.Render(r.left[:frames], r.right[:frames])
	return true
}

func (r *RenderLoop) apply(cmd Command) {
	switch cmd.Kind {
	case CmdNoteOn:
		r.synth.NoteOn(r.channel, int32(cmd.Note), int32(cmd.Velocity))
	case CmdNoteOff:
		r.synth.NoteOff(r.channel, int32(cmd.Note))
	case CmdStopAll:
		for key := int32(0); key < 128; key++ {
			r.synth.NoteOff(r.channel, key)
		}
	}
}

// Errors delivers render failures to a control goroutine. Failures that
// occur while a previous one is still unread are only counted.
func (r *RenderLoop) Errors() <-chan error {
	return r.errs
}

// Periods returns the number of periods rendered while running.
func (r *RenderLoop) Periods() uint64 {
	return r.periods.Load()
}

// Failures returns the number of periods replaced by silence after a panic.
func (r *RenderLoop) Failures() uint64 {
	return r.failures.Load()
}
