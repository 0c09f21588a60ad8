package action

import (
	"context"
	"os"
	"os/exec"
	"sync"

	errgo "gopkg.in/errgo.v1"

	"go-motif/debug"
	"go-motif/pattern"
)

// ErrUnknownAction is the cause of firing an id nothing is configured for.
var ErrUnknownAction = errgo.New("unknown action")

// Sink performs the side effect of an action.
type Sink interface {
	Fire(ctx context.Context, id pattern.ActionID) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, id pattern.ActionID) error

func (f SinkFunc) Fire(ctx context.Context, id pattern.ActionID) error { return f(ctx, id) }

// Sinks fires every sink in turn and returns the first error.
type Sinks []Sink

func (s Sinks) Fire(ctx context.Context, id pattern.ActionID) error {
	var first error
	for _, sink := range s {
		if err := sink.Fire(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogSink logs every action it receives.
type LogSink struct{}

func (LogSink) Fire(ctx context.Context, id pattern.ActionID) error {
	debug.Logger("action").Info("pattern matched", "action", id)
	return nil
}

// Command is an external program run for an action.
type Command struct {
	Path string
	Args []string
}

// ActionEnv names the environment variable carrying the action id to the
// started program.
const ActionEnv = "MOTIF_ACTION"

// ExecSink starts the configured command of each action. Fire returns once
// the process has started; a goroutine reaps it and logs a non-zero exit.
// Commands outlive the worker that fired them until Wait gives up on them.
type ExecSink struct {
	commands map[pattern.ActionID]Command
	wg       sync.WaitGroup

	mu      sync.Mutex
	running map[*exec.Cmd]pattern.ActionID
}

// NewExecSink returns a sink for the given commands.
func NewExecSink(commands map[pattern.ActionID]Command) *ExecSink {
	return &ExecSink{
		commands: commands,
		running:  make(map[*exec.Cmd]pattern.ActionID),
	}
}

func (s *ExecSink) Fire(ctx context.Context, id pattern.ActionID) error {
	c, ok := s.commands[id]
	if !ok {
		return errgo.WithCausef(nil, ErrUnknownAction, "no command for action %q", id)
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), ActionEnv+"="+string(id))
	if err := cmd.Start(); err != nil {
		return errgo.Notef(err, "cannot start %q for action %q", c.Path, id)
	}
	s.mu.Lock()
	s.running[cmd] = id
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := cmd.Wait()
		s.mu.Lock()
		delete(s.running, cmd)
		s.mu.Unlock()
		if err != nil {
			debug.Logger("action").Warn("action command failed", "action", id, "cmd", c.Path, "err", err)
		}
	}()
	return nil
}

// Running returns the number of started commands that have not exited.
func (s *ExecSink) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Wait blocks until every started command has exited. When ctx is done
// first, the remaining commands are killed and reaped, and the returned
// error has the context error as its cause.
func (s *ExecSink) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	n := len(s.running)
	for cmd, id := range s.running {
		debug.Logger("action").Warn("killing action command", "action", id, "pid", cmd.Process.Pid)
		cmd.Process.Kill()
	}
	s.mu.Unlock()
	<-done
	return errgo.WithCausef(ctx.Err(), errgo.Cause(ctx.Err()), "killed %d action command(s) still running", n)
}
