package midi

import errgo "gopkg.in/errgo.v1"

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerKeyboard
	ControllerSerial
)

func (t ControllerType) String() string {
	switch t {
	case ControllerKeyboard:
		return "keyboard"
	case ControllerSerial:
		return "serial"
	}
	return "unknown"
}

// Controller is an open MIDI input delivering messages to a Handler
type Controller interface {
	ID() string
	Type() ControllerType

	// Lifecycle
	Close() error
}

// ErrNoPort is the cause of setup errors when no usable MIDI input exists.
var ErrNoPort = errgo.New("no MIDI input port available")
