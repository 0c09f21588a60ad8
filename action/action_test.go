package action

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"go-motif/pattern"
)

type recordSink struct {
	mu  sync.Mutex
	ids []pattern.ActionID
	err error
}

func (s *recordSink) Fire(ctx context.Context, id pattern.ActionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return s.err
}

func (s *recordSink) got() []pattern.ActionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pattern.ActionID(nil), s.ids...)
}

func TestDispatchDropsWhenFull(t *testing.T) {
	c := qt.New(t)
	d := NewDispatcher(&recordSink{}, 2)
	c.Assert(d.Dispatch("a"), qt.IsTrue)
	c.Assert(d.Dispatch("b"), qt.IsTrue)
	c.Assert(d.Dispatch("c"), qt.IsFalse)
	c.Assert(d.Dropped(), qt.Equals, uint64(1))
}

func TestRunFiresInOrder(t *testing.T) {
	c := qt.New(t)
	sink := &recordSink{}
	d := NewDispatcher(sink, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()
	for _, id := range []pattern.ActionID{"x", "y", "z"} {
		d.Dispatch(id)
	}
	cancel()
	c.Assert(<-done, qt.IsNil)
	c.Assert(sink.got(), qt.DeepEquals, []pattern.ActionID{"x", "y", "z"})
	c.Assert(d.Fired(), qt.Equals, uint64(3))
}

func TestRunDrainsAfterCancel(t *testing.T) {
	c := qt.New(t)
	var seen []error
	d := NewDispatcher(SinkFunc(func(ctx context.Context, id pattern.ActionID) error {
		seen = append(seen, ctx.Err())
		return nil
	}), 8)
	d.Dispatch("late")
	d.Dispatch("later")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(d.Run(ctx), qt.IsNil)
	c.Assert(d.Fired(), qt.Equals, uint64(2))
	c.Assert(seen, qt.DeepEquals, []error{nil, nil})
}

func TestRunCountsFailures(t *testing.T) {
	c := qt.New(t)
	d := NewDispatcher(&recordSink{err: errgo.New("boom")}, 4)
	d.Dispatch("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
	c.Assert(d.Failed(), qt.Equals, uint64(1))
}

func TestSinksFanOut(t *testing.T) {
	c := qt.New(t)
	a := &recordSink{err: errgo.New("first")}
	b := &recordSink{}
	err := Sinks{a, LogSink{}, b}.Fire(context.Background(), "id")
	c.Assert(err, qt.ErrorMatches, "first")
	c.Assert(a.got(), qt.DeepEquals, []pattern.ActionID{"id"})
	c.Assert(b.got(), qt.DeepEquals, []pattern.ActionID{"id"})
}

func TestExecSinkUnknownAction(t *testing.T) {
	c := qt.New(t)
	s := NewExecSink(nil)
	err := s.Fire(context.Background(), "nope")
	c.Assert(errgo.Cause(err), qt.Equals, ErrUnknownAction)
	c.Assert(err, qt.ErrorMatches, `no command for action "nope"`)
}

func TestExecSinkRunsCommand(t *testing.T) {
	c := qt.New(t)
	out := filepath.Join(c.TempDir(), "fired")
	s := NewExecSink(map[pattern.ActionID]Command{
		"reward": {Path: "sh", Args: []string{"-c", `printf %s "$` + ActionEnv + `" > "$0"`, out}},
	})
	c.Assert(s.Fire(context.Background(), "reward"), qt.IsNil)
	c.Assert(s.Wait(context.Background()), qt.IsNil)
	c.Assert(s.Running(), qt.Equals, 0)
	data, err := os.ReadFile(out)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "reward")
}

func TestExecSinkMissingProgram(t *testing.T) {
	c := qt.New(t)
	s := NewExecSink(map[pattern.ActionID]Command{
		"x": {Path: filepath.Join(c.TempDir(), "does-not-exist")},
	})
	err := s.Fire(context.Background(), "x")
	c.Assert(err, qt.ErrorMatches, `cannot start ".*does-not-exist" for action "x": .*`)
}

func TestExecSinkWaitKillsAfterDeadline(t *testing.T) {
	c := qt.New(t)
	s := NewExecSink(map[pattern.ActionID]Command{
		"popup": {Path: "sleep", Args: []string{"30"}},
	})

	// A cancelled firing context does not stop a started command.
	ctx, cancel := context.WithCancel(context.Background())
	c.Assert(s.Fire(ctx, "popup"), qt.IsNil)
	cancel()
	c.Assert(s.Running(), qt.Equals, 1)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	start := time.Now()
	err := s.Wait(waitCtx)
	c.Assert(errgo.Cause(err), qt.Equals, context.DeadlineExceeded)
	c.Assert(err, qt.ErrorMatches, `killed 1 action command\(s\) still running: context deadline exceeded`)
	c.Assert(time.Since(start) < 10*time.Second, qt.IsTrue)
	c.Assert(s.Running(), qt.Equals, 0)
}
