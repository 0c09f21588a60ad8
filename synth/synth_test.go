package synth

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"
)

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func TestToneSilentWithoutNotes(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(44100)
	left, right := make([]float32, 256), make([]float32, 256)
	tone.Render(left, right)
	c.Assert(peak(left), qt.Equals, 0.0)
	c.Assert(peak(right), qt.Equals, 0.0)
}

func TestToneNoteOnAndRelease(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(44100)
	left, right := make([]float32, 1024), make([]float32, 1024)

	tone.NoteOn(0, 69, 100)
	tone.Render(left, right)
	c.Assert(peak(left) > 0.01, qt.IsTrue)
	c.Assert(left, qt.DeepEquals, right)
	c.Assert(tone.Active(), qt.Equals, 1)

	tone.NoteOff(0, 69)
	for i := 0; i < 100 && tone.Active() > 0; i++ {
		tone.Render(left, right)
	}
	c.Assert(tone.Active(), qt.Equals, 0)
	tone.Render(left, right)
	c.Assert(peak(left), qt.Equals, 0.0)
}

func TestToneZeroVelocityReleases(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(44100)
	tone.NoteOn(0, 60, 90)
	tone.NoteOn(0, 60, 0)
	c.Assert(tone.voices[0].releasing, qt.IsTrue)
}

func TestToneRetriggerReusesVoice(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(44100)
	tone.NoteOn(0, 60, 90)
	tone.NoteOn(0, 60, 90)
	c.Assert(tone.Active(), qt.Equals, 1)
	tone.NoteOn(1, 60, 90)
	c.Assert(tone.Active(), qt.Equals, 2)
}

func TestToneStealsOldestVoice(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(44100)
	for key := int32(0); key < MaxVoices+1; key++ {
		tone.NoteOn(0, key, 100)
	}
	c.Assert(tone.Active(), qt.Equals, MaxVoices)
	for _, v := range tone.voices {
		c.Assert(v.key, qt.Not(qt.Equals), int32(0))
	}
}

func TestToneRenderDoesNotAllocate(t *testing.T) {
	c := qt.New(t)
	tone := NewTone(48000)
	left, right := make([]float32, 512), make([]float32, 512)
	allocs := testing.AllocsPerRun(50, func() {
		tone.NoteOn(0, 64, 100)
		tone.Render(left, right)
		tone.NoteOff(0, 64)
	})
	c.Assert(allocs, qt.Equals, float64(0))
}

func TestLoadSoundFontMissingFile(t *testing.T) {
	c := qt.New(t)
	_, err := LoadSoundFont(filepath.Join(c.TempDir(), "missing.sf2"), 44100)
	c.Assert(errgo.Cause(err), qt.Equals, ErrSoundFont)
	c.Assert(err, qt.ErrorMatches, `cannot read ".*missing.sf2": .*`)
}

func TestNewSoundFontSynthBadData(t *testing.T) {
	c := qt.New(t)
	_, err := NewSoundFontSynth(strings.NewReader("RIFF not really a soundfont"), 44100)
	c.Assert(errgo.Cause(err), qt.Equals, ErrSoundFont)
}
