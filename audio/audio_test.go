package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

// rampProcessor writes the sample index into every slot.
type rampProcessor struct {
	calls    int
	frames   int
	channels int
}

func (p *rampProcessor) Process(out []float32, frames, channels int) {
	p.calls++
	p.frames = frames
	p.channels = channels
	for i := range out[:frames*channels] {
		out[i] = float32(i)
	}
}

func sampleAt(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

var streamReadTests = []struct {
	testName     string
	channels     int
	maxFrames    int
	bufLen       int
	expectN      int
	expectFrames int
}{{
	testName:     "stereo-exact",
	channels:     2,
	maxFrames:    4,
	bufLen:       32,
	expectN:      32,
	expectFrames: 4,
}, {
	testName:     "mono",
	channels:     1,
	maxFrames:    8,
	bufLen:       16,
	expectN:      16,
	expectFrames: 4,
}, {
	testName:     "larger-than-scratch",
	channels:     2,
	maxFrames:    2,
	bufLen:       64,
	expectN:      64,
	expectFrames: 8,
}}

func TestStreamRead(t *testing.T) {
	c := qt.New(t)
	for _, test := range streamReadTests {
		c.Run(test.testName, func(c *qt.C) {
			p := &rampProcessor{}
			s := NewStream(p, test.channels, test.maxFrames)
			b := make([]byte, test.bufLen)
			n, err := s.Read(b)
			c.Assert(err, qt.IsNil)
			c.Assert(n, qt.Equals, test.expectN)
			c.Assert(p.frames, qt.Equals, test.expectFrames)
			c.Assert(p.channels, qt.Equals, test.channels)
			for i := 0; i < n/4; i++ {
				c.Assert(sampleAt(b, i), qt.Equals, float32(i))
			}
		})
	}
}

// counterProcessor continues one sample count across calls.
type counterProcessor struct {
	next float32
}

func (p *counterProcessor) Process(out []float32, frames, channels int) {
	for i := range out[:frames*channels] {
		out[i] = p.next
		p.next++
	}
}

func TestStreamReadKeepsFrameAlignment(t *testing.T) {
	c := qt.New(t)
	s := NewStream(&counterProcessor{}, 2, 4)
	var got []byte
	for _, size := range []int{3, 5, 8, 13, 3} {
		b := make([]byte, size)
		n, err := s.Read(b)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, size)
		got = append(got, b...)
	}
	c.Assert(got, qt.HasLen, 32)
	for i := 0; i < 8; i++ {
		c.Assert(sampleAt(got, i), qt.Equals, float32(i), qt.Commentf("sample %d", i))
	}
}

func TestStreamReadDoesNotAllocate(t *testing.T) {
	c := qt.New(t)
	s := NewStream(&rampProcessor{}, 2, 512)
	b := make([]byte, 512*2*4)
	allocs := testing.AllocsPerRun(50, func() {
		s.Read(b)
	})
	c.Assert(allocs, qt.Equals, float64(0))
}

type failingPlayer struct {
	polls atomic.Int32
	after int32
	err   error
}

func (p *failingPlayer) Err() error {
	if p.polls.Add(1) > p.after {
		return p.err
	}
	return nil
}

func TestWatchReportsPlayerError(t *testing.T) {
	c := qt.New(t)
	underrun := errors.New("device unplugged")
	p := &failingPlayer{after: 2, err: underrun}
	err := Watch(context.Background(), p, time.Millisecond)
	c.Assert(err, qt.ErrorMatches, "audio output failed: device unplugged")
	c.Assert(p.polls.Load(), qt.Equals, int32(3))
}

func TestWatchStopsWithContext(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Watch(ctx, &failingPlayer{after: 1 << 30}, time.Hour)
	c.Assert(err, qt.IsNil)
}
