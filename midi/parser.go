package midi

// Parser reassembles channel messages from a raw MIDI byte stream, as read
// from a DIN/serial link. It follows running status, lets real-time bytes
// through without disturbing it, and skips system exclusive data.
type Parser struct {
	status uint8
	data   [2]uint8
	n      int
	sysex  bool
}

// dataLen is the number of data bytes following a channel status byte.
func dataLen(status uint8) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}

// Feed consumes one byte and returns a message once one is complete.
func (p *Parser) Feed(b uint8) (status, data1, data2 uint8, ok bool) {
	switch {
	case b >= 0xF8:
		// real-time: clock, start, stop, active sensing...
		return 0, 0, 0, false
	case b == 0xF0:
		p.sysex = true
		p.status = 0
		return 0, 0, 0, false
	case b == 0xF7:
		p.sysex = false
		return 0, 0, 0, false
	case b >= 0xF1:
		// system common cancels running status; its data bytes are dropped
		p.sysex = false
		p.status = 0
		return 0, 0, 0, false
	case b >= 0x80:
		p.sysex = false
		p.status = b
		p.n = 0
		return 0, 0, 0, false
	}

	if p.sysex || p.status == 0 {
		return 0, 0, 0, false
	}
	p.data[p.n] = b
	p.n++
	if p.n < dataLen(p.status) {
		return 0, 0, 0, false
	}
	p.n = 0
	if dataLen(p.status) == 1 {
		return p.status, p.data[0], 0, true
	}
	return p.status, p.data[0], p.data[1], true
}

// Write feeds buf through the parser, calling h for each complete message.
func (p *Parser) Write(buf []byte, h Handler) {
	for _, b := range buf {
		if status, d1, d2, ok := p.Feed(b); ok {
			h(status, d1, d2)
		}
	}
}
