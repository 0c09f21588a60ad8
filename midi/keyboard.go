package midi

import (
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	errgo "gopkg.in/errgo.v1"

	"go-motif/debug"
)

// KeyboardController handles a standard MIDI keyboard on a driver input port
type KeyboardController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	closeOnce sync.Once
	lostOnce  sync.Once
	lost      chan struct{}
}

// NewKeyboardController opens inPort and forwards every channel message to h.
func NewKeyboardController(id string, inPort drivers.In, h Handler) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:     id,
		inPort: inPort,
		lost:   make(chan struct{}),
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		// channel voice messages only; sysex and real-time carry no notes
		if len(msg) >= 3 && msg[0] >= 0x80 && msg[0] < 0xF0 {
			h(msg[0], msg[1], msg[2])
		}
	}, gomidi.HandleError(func(err error) {
		debug.Logger("midi").Warn("listener error, device likely disconnected", "port", id, "err", err)
		kb.markLost()
	}))
	if err != nil {
		return nil, errgo.Notef(err, "open input %q", id)
	}
	kb.stopFunc = stop
	return kb, nil
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

// Lost is closed when the listener reports the device has gone away.
func (kb *KeyboardController) Lost() <-chan struct{} {
	return kb.lost
}

func (kb *KeyboardController) markLost() {
	kb.lostOnce.Do(func() { close(kb.lost) })
}

func (kb *KeyboardController) Close() error {
	var err error
	kb.closeOnce.Do(func() {
		if kb.stopFunc != nil {
			kb.stopFunc()
		}
		if kb.inPort != nil && kb.inPort.IsOpen() {
			err = kb.inPort.Close()
		}
	})
	return err
}
