// Package audio plays the engine's output through the system audio device
// using oto. oto pulls bytes from a Stream on its own goroutine, which is
// therefore the audio thread.
package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/hajimehoshi/oto/v2"
	errgo "gopkg.in/errgo.v1"

	"go-motif/debug"
)

// ErrNoDevice is the cause of a failure to open the audio device.
var ErrNoDevice = errgo.New("no audio output device")

const bytesPerSample = 4 // float32 LE

// Processor fills interleaved float32 frames. engine.Engine implements it.
type Processor interface {
	Process(out []float32, frames, channels int)
}

// Config describes the output stream.
type Config struct {
	SampleRate int
	Channels   int
	// Frames is the period size requested from the driver.
	Frames int
}

// Stream adapts a Processor to the io.Reader oto pulls from.
type Stream struct {
	proc     Processor
	channels int
	buf      []float32

	// tail holds the encoded frame a short read split, from tailOff on.
	tail    []byte
	tailOff int
}

// NewStream returns a stream with scratch space for periods of up to
// maxFrames frames.
func NewStream(p Processor, channels, maxFrames int) *Stream {
	if channels <= 0 {
		channels = 2
	}
	if maxFrames <= 0 {
		maxFrames = 512
	}
	frameBytes := channels * bytesPerSample
	return &Stream{
		proc:     p,
		channels: channels,
		buf:      make([]float32, maxFrames*channels),
		tail:     make([]byte, frameBytes),
		tailOff:  frameBytes,
	}
}

// Read always fills b. Whole frames are rendered straight into it; when b
// ends inside a frame, the rest of that frame is returned by the next Read,
// so samples never drift out of frame alignment. It never blocks and never
// returns an error: the stream lasts as long as the player.
func (s *Stream) Read(b []byte) (int, error) {
	n := copy(b, s.tail[s.tailOff:])
	s.tailOff += n
	rest := b[n:]

	frameBytes := s.channels * bytesPerSample
	if frames := len(rest) / frameBytes; frames > 0 {
		s.render(rest, frames)
		rest = rest[frames*frameBytes:]
	}
	if len(rest) > 0 {
		s.render(s.tail, 1)
		s.tailOff = copy(rest, s.tail)
	}
	return len(b), nil
}

// render encodes frames frames from the processor into dst.
func (s *Stream) render(dst []byte, frames int) {
	n := frames * s.channels
	if n > len(s.buf) {
		s.buf = make([]float32, n)
	}
	buf := s.buf[:n]
	s.proc.Process(buf, frames, s.channels)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(v))
	}
}

// Output is an open audio device playing a Stream.
type Output struct {
	ctx    *oto.Context
	player oto.Player
}

// Open starts playback of p on the default output device. It blocks until
// the device is ready.
func Open(cfg Config, p Processor) (*Output, error) {
	ctx, ready, err := oto.NewContext(cfg.SampleRate, cfg.Channels, oto.FormatFloat32LE)
	if err != nil {
		return nil, errgo.WithCausef(err, ErrNoDevice, "cannot open audio output (%d Hz, %d channels)", cfg.SampleRate, cfg.Channels)
	}
	<-ready

	player := ctx.NewPlayer(NewStream(p, cfg.Channels, cfg.Frames))
	if cfg.Frames > 0 {
		player.(oto.BufferSizeSetter).SetBufferSize(cfg.Frames * cfg.Channels * bytesPerSample)
	}
	player.Play()
	debug.Logger("audio").Info("audio output started", "rate", cfg.SampleRate, "channels", cfg.Channels, "frames", cfg.Frames)
	return &Output{ctx: ctx, player: player}, nil
}

// Err returns the first error the player hit, if any.
func (o *Output) Err() error {
	return o.player.Err()
}

// Close stops playback.
func (o *Output) Close() error {
	if err := o.player.Close(); err != nil {
		return errgo.Notef(err, "cannot close audio player")
	}
	return nil
}

// Watch polls src every interval and returns the first error it reports, or
// nil once ctx is done.
func Watch(ctx context.Context, src interface{ Err() error }, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := src.Err(); err != nil {
			return errgo.Notef(err, "audio output failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
