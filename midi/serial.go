package midi

import (
	"io"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
	errgo "gopkg.in/errgo.v1"

	"go-motif/debug"
)

// DefaultSerialBaud is the DIN MIDI line rate.
const DefaultSerialBaud = 31250

// SerialController reads a raw MIDI byte stream from a serial device, such
// as a DIN-MIDI adapter or a microcontroller bridge.
type SerialController struct {
	id      string
	port    io.ReadCloser
	done    chan struct{}
	closing atomic.Bool
	once    sync.Once
}

// OpenSerial opens the named serial device at baud and forwards every
// complete channel message to h from a reader goroutine.
func OpenSerial(name string, baud int, h Handler) (*SerialController, error) {
	if baud <= 0 {
		baud = DefaultSerialBaud
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errgo.WithCausef(err, ErrNoPort, "open serial port %q", name)
	}
	debug.Logger("midi").Info("serial port opened", "device", name, "baud", baud)
	return newSerialController(name, p, h), nil
}

func newSerialController(id string, port io.ReadCloser, h Handler) *SerialController {
	s := &SerialController{
		id:   id,
		port: port,
		done: make(chan struct{}),
	}
	go s.readLoop(h)
	return s
}

func (s *SerialController) readLoop(h Handler) {
	defer close(s.done)
	var p Parser
	buf := make([]byte, 64)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			p.Write(buf[:n], h)
		}
		if err != nil {
			if !s.closing.Load() && err != io.EOF {
				debug.Logger("midi").Warn("serial read failed", "device", s.id, "err", err)
			}
			return
		}
	}
}

func (s *SerialController) ID() string {
	return s.id
}

func (s *SerialController) Type() ControllerType {
	return ControllerSerial
}

// Done is closed when the reader goroutine has exited.
func (s *SerialController) Done() <-chan struct{} {
	return s.done
}

// Close closes the port and waits for the reader to exit.
func (s *SerialController) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		err = s.port.Close()
		<-s.done
	})
	return err
}
