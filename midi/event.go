package midi

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Kind says whether a note starts or ends
type Kind uint8

const (
	KindOff Kind = iota
	KindOn
)

func (k Kind) String() string {
	if k == KindOn {
		return "on"
	}
	return "off"
}

// Event is a decoded note event. Immutable once created.
type Event struct {
	Kind     Kind
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// Handler receives raw channel messages from a MIDI source. It is called on
// the source's own goroutine and must not block.
type Handler func(status, data1, data2 uint8)

// Decode turns raw bytes into a note event. A note-on with velocity 0 is a
// note-off. ok is false for anything that is not a note message.
func Decode(status, data1, data2 uint8) (ev Event, ok bool) {
	ev = Event{
		Channel:  status & 0x0F,
		Note:     data1 & 0x7F,
		Velocity: data2 & 0x7F,
	}
	switch status & 0xF0 {
	case NoteOn:
		if ev.Velocity > 0 {
			ev.Kind = KindOn
		} else {
			ev.Kind = KindOff
		}
		return ev, true
	case NoteOff:
		ev.Kind = KindOff
		return ev, true
	}
	return Event{}, false
}
