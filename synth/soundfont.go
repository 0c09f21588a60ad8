// Package synth provides the synthesizers the engine can drive: a SoundFont
// player backed by meltysynth and a small built-in FM tone generator.
package synth

import (
	"bytes"
	"io"
	"os"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"
	errgo "gopkg.in/errgo.v1"

	"go-motif/engine"
)

// ErrSoundFont is the cause of every SoundFont loading failure.
var ErrSoundFont = errgo.New("cannot load SoundFont")

var _ engine.Synthesizer = (*meltysynth.Synthesizer)(nil)

// LoadSoundFont reads the SoundFont2 file at path and returns a synthesizer
// rendering at sampleRate.
func LoadSoundFont(path string, sampleRate int) (*meltysynth.Synthesizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errgo.WithCausef(err, ErrSoundFont, "cannot read %q", path)
	}
	s, err := NewSoundFontSynth(bytes.NewReader(data), sampleRate)
	if err != nil {
		return nil, errgo.NoteMask(err, path, errgo.Is(ErrSoundFont))
	}
	return s, nil
}

// NewSoundFontSynth parses a SoundFont2 stream.
func NewSoundFontSynth(r io.Reader, sampleRate int) (*meltysynth.Synthesizer, error) {
	sf, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, errgo.WithCausef(err, ErrSoundFont, "bad SoundFont")
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	s, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, errgo.WithCausef(err, ErrSoundFont, "cannot create synthesizer")
	}
	return s, nil
}
