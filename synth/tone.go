package synth

import (
	"math"

	"go-motif/engine"
)

// MaxVoices is the polyphony of Tone. A note-on with every voice busy
// steals the oldest one.
const MaxVoices = 32

const (
	attackSeconds = 0.005
	releaseFactor = 0.9995
	silentLevel   = 0.001
)

var _ engine.Synthesizer = (*Tone)(nil)

type voice struct {
	channel  int32
	key      int32
	amp      float64
	freq     float64
	phase    float64
	modPhase float64
	env      float64
	started  uint64

	releasing bool
	active    bool
}

// Tone is a two-operator FM synthesizer used when no SoundFont is
// configured. Like any engine.Synthesizer it must only be used from one
// goroutine at a time.
type Tone struct {
	// ModRatio is the modulator to carrier frequency ratio and ModIndex the
	// modulation depth.
	ModRatio float64
	ModIndex float64
	Gain     float64

	sampleRate float64
	attackStep float64
	voices     [MaxVoices]voice
	clock      uint64
}

// NewTone returns a tone generator rendering at sampleRate.
func NewTone(sampleRate int) *Tone {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Tone{
		ModRatio:   2,
		ModIndex:   1.2,
		Gain:       0.25,
		sampleRate: float64(sampleRate),
		attackStep: 1 / (attackSeconds * float64(sampleRate)),
	}
}

// NoteOn starts key on channel. A zero velocity releases it instead.
func (t *Tone) NoteOn(channel, key, velocity int32) {
	if velocity <= 0 {
		t.NoteOff(channel, key)
		return
	}
	t.clock++
	v := t.pick(channel, key)
	*v = voice{
		channel: channel,
		key:     key,
		amp:     float64(velocity) / 127,
		freq:    keyFreq(key),
		started: t.clock,
		active:  true,
	}
}

// pick returns the voice already playing key, a free voice, or the oldest.
func (t *Tone) pick(channel, key int32) *voice {
	var free, oldest *voice
	for i := range t.voices {
		v := &t.voices[i]
		if v.active && v.channel == channel && v.key == key {
			return v
		}
		if !v.active {
			if free == nil {
				free = v
			}
			continue
		}
		if oldest == nil || v.started < oldest.started {
			oldest = v
		}
	}
	if free != nil {
		return free
	}
	return oldest
}

// NoteOff releases key on channel.
func (t *Tone) NoteOff(channel, key int32) {
	for i := range t.voices {
		v := &t.voices[i]
		if v.active && v.channel == channel && v.key == key {
			v.releasing = true
		}
	}
}

// Active returns the number of sounding voices, including releasing ones.
func (t *Tone) Active() int {
	n := 0
	for i := range t.voices {
		if t.voices[i].active {
			n++
		}
	}
	return n
}

// Render writes the mix of every voice to left and right.
func (t *Tone) Render(left, right []float32) {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		var s float64
		for j := range t.voices {
			v := &t.voices[j]
			if !v.active {
				continue
			}
			s += fm(v.phase, v.modPhase, t.ModIndex) * v.amp * v.env
			v.phase += v.freq / t.sampleRate
			v.phase -= math.Floor(v.phase)
			v.modPhase += v.freq * t.ModRatio / t.sampleRate
			v.modPhase -= math.Floor(v.modPhase)

			if v.releasing {
				v.env *= releaseFactor
				if v.env < silentLevel {
					v.active = false
				}
			} else if v.env < 1 {
				v.env = math.Min(1, v.env+t.attackStep)
			}
		}
		out := float32(softSat(s * t.Gain))
		left[i] = out
		right[i] = out
	}
}

// fm returns a two-operator FM sample for normalized carrier and modulator
// phases.
func fm(phase, modPhase, index float64) float64 {
	mod := math.Sin(2 * math.Pi * modPhase)
	return math.Sin(2*math.Pi*phase + index*mod)
}

// softSat applies gentle saturation instead of hard clipping.
func softSat(x float64) float64 {
	if x > 1.0 {
		return 1.0 - 0.5/x
	}
	if x < -1.0 {
		return -1.0 + 0.5/(-x)
	}
	return x - x*x*x/3.0
}

// keyFreq converts a MIDI key to Hz (A4 = 69 = 440 Hz).
func keyFreq(key int32) float64 {
	return 440.0 * math.Pow(2.0, (float64(key)-69.0)/12.0)
}
