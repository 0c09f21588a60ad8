package midi

import "math"

// VelocityMap rescales incoming note-on velocities before they reach the
// synthesizer. A Scale of zero or less leaves velocities untouched.
type VelocityMap struct {
	Scale float64
}

// Apply multiplies v by the scale, rounds, and clamps to 0-127. A non-zero
// velocity never maps to zero, which would turn a note-on into a note-off.
func (m VelocityMap) Apply(v uint8) uint8 {
	if m.Scale <= 0 || m.Scale == 1 || v == 0 {
		return v
	}
	scaled := math.Round(float64(v) * m.Scale)
	switch {
	case scaled < 1:
		return 1
	case scaled > 127:
		return 127
	}
	return uint8(scaled)
}
