package engine

import (
	"fmt"
	"sync/atomic"
)

// CommandKind selects what a Command does to the synthesizer.
type CommandKind uint8

const (
	CmdNoteOn CommandKind = iota
	CmdNoteOff
	CmdStopAll
)

// Command is a value handed from MIDI/control goroutines to the audio
// goroutine. It is copied through the channel; nothing is shared.
type Command struct {
	Kind     CommandKind
	Note     uint8
	Velocity uint8
}

func NoteOnCommand(note, velocity uint8) Command {
	return Command{Kind: CmdNoteOn, Note: note, Velocity: velocity}
}

func NoteOffCommand(note uint8) Command {
	return Command{Kind: CmdNoteOff, Note: note}
}

func StopAllCommand() Command {
	return Command{Kind: CmdStopAll}
}

func (c Command) String() string {
	switch c.Kind {
	case CmdNoteOn:
		return fmt.Sprintf("on(%d,%d)", c.Note, c.Velocity)
	case CmdNoteOff:
		return fmt.Sprintf("off(%d)", c.Note)
	case CmdStopAll:
		return "stop-all"
	}
	return "?"
}

// DefaultQueueSize is the command capacity used when none is configured.
const DefaultQueueSize = 1024

// CommandChannel carries commands from any number of producers to the single
// audio consumer. Send never blocks and never fails observably; Drain never
// blocks. Each producer's commands arrive in the order it sent them.
type CommandChannel struct {
	ch      chan Command
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewCommandChannel returns a channel holding up to size undrained commands.
func NewCommandChannel(size int) *CommandChannel {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &CommandChannel{ch: make(chan Command, size)}
}

// Send queues cmd. When the channel is full or has been closed the command is
// dropped and counted.
func (c *CommandChannel) Send(cmd Command) {
	if c.closed.Load() {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- cmd:
	default:
		c.dropped.Add(1)
	}
}

// Drain appends the commands queued since the last drain to dst and returns
// it. It takes at most the number of commands queued on entry, so a flood of
// concurrent sends cannot keep it running.
func (c *CommandChannel) Drain(dst []Command) []Command {
	for n := len(c.ch); n > 0; n-- {
		select {
		case cmd := <-c.ch:
			dst = append(dst, cmd)
		default:
			return dst
		}
	}
	return dst
}

// Close tears the channel down; later sends are dropped. The underlying Go
// channel is never closed so racing senders cannot panic.
func (c *CommandChannel) Close() {
	c.closed.Store(true)
}

// Cap returns the channel capacity.
func (c *CommandChannel) Cap() int {
	return cap(c.ch)
}

// Dropped returns the number of commands dropped so far.
func (c *CommandChannel) Dropped() uint64 {
	return c.dropped.Load()
}
