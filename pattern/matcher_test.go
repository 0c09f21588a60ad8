package pattern

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func mustCompile(c *qt.C, patterns ...Pattern) *Library {
	lib, err := Compile(patterns)
	c.Assert(err, qt.IsNil)
	return lib
}

func pat(action string, notes ...Token) Pattern {
	return Pattern{Name: action, Notes: notes, Action: ActionID(action)}
}

// liveStrings renders the live set as note prefixes for readable assertions.
func liveStrings(m *Matcher) []string {
	var out []string
	for _, id := range m.Live() {
		out = append(out, FormatTokens(m.lib.Prefix(id)))
	}
	return out
}

var completionTests = []struct {
	testName string
	pattern  Pattern
	feed     []uint8
}{{
	testName: "single-note",
	pattern:  pat("A", 60),
	feed:     []uint8{60},
}, {
	testName: "concrete-sequence",
	pattern:  pat("A", 60, 62, 64),
	feed:     []uint8{60, 62, 64},
}, {
	testName: "wildcard-middle",
	pattern:  pat("A", 60, Any, 64),
	feed:     []uint8{60, 12, 64},
}, {
	testName: "wildcard-first",
	pattern:  pat("A", Any, 61),
	feed:     []uint8{100, 61},
}, {
	testName: "wildcard-last",
	pattern:  pat("A", 48, 50, Any),
	feed:     []uint8{48, 50, 127},
}, {
	testName: "all-wildcards",
	pattern:  pat("A", Any, Any, Any),
	feed:     []uint8{1, 2, 3},
}}

func TestAdvanceCompletesOnFinalNote(t *testing.T) {
	c := qt.New(t)
	for _, test := range completionTests {
		c.Run(test.testName, func(c *qt.C) {
			m := NewMatcher(mustCompile(c, test.pattern))
			for i, p := range test.feed {
				fired := m.Advance(p)
				if i < len(test.feed)-1 {
					c.Assert(fired, qt.HasLen, 0, qt.Commentf("note %d", i))
					continue
				}
				c.Assert(fired, qt.DeepEquals, []ActionID{test.pattern.Action})
			}
		})
	}
}

func TestSharedPrefix(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("A", 60, 61), pat("B", 60, 62))

	m := NewMatcher(lib)
	c.Assert(m.Advance(60), qt.HasLen, 0)
	c.Assert(liveStrings(m), qt.DeepEquals, []string{"C4"})
	c.Assert(lib.Candidates(m.Live()[0]), qt.DeepEquals, []string{"A", "B"})
	c.Assert(m.Advance(61), qt.DeepEquals, []ActionID{"A"})

	m.Reset()
	c.Assert(m.Advance(60), qt.HasLen, 0)
	c.Assert(m.Advance(62), qt.DeepEquals, []ActionID{"B"})

	m.Reset()
	c.Assert(m.Advance(60), qt.HasLen, 0)
	c.Assert(m.Advance(63), qt.HasLen, 0)
	c.Assert(m.Live(), qt.HasLen, 0)
}

func TestExactEdgeBeatsWildcard(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("A", 60, Any), pat("B", 60, 64))

	m := NewMatcher(lib)
	m.Advance(60)
	c.Assert(m.Advance(64), qt.DeepEquals, []ActionID{"B"})

	m.Reset()
	m.Advance(60)
	c.Assert(m.Advance(65), qt.DeepEquals, []ActionID{"A"})
}

func TestExactEdgeBeatsWildcardRegardlessOfOrder(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("B", 60, 64), pat("A", 60, Any))

	m := NewMatcher(lib)
	m.Advance(60)
	c.Assert(m.Advance(64), qt.DeepEquals, []ActionID{"B"})
}

func TestBranchingScenario(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("A", 60, 61, 62), pat("B", 60, 60, 61))
	m := NewMatcher(lib)

	// 60: fresh start only.
	c.Assert(m.Advance(60), qt.HasLen, 0)
	c.Assert(liveStrings(m), qt.DeepEquals, []string{"C4"})

	// 60: "60" advances along B to "60 60"; a fresh start re-enters "60".
	c.Assert(m.Advance(60), qt.HasLen, 0)
	c.Assert(liveStrings(m), qt.DeepEquals, []string{"C4 C4", "C4"})

	// 61: "60 60" completes B; "60" advances along A; no fresh start on 61.
	c.Assert(m.Advance(61), qt.DeepEquals, []ActionID{"B"})
	c.Assert(liveStrings(m), qt.DeepEquals, []string{"C4 C4 C#4", "C4 C#4"})

	// 62: the B leaf dead-ends and is dropped; "60 61" completes A.
	c.Assert(m.Advance(62), qt.DeepEquals, []ActionID{"A"})
	c.Assert(liveStrings(m), qt.DeepEquals, []string{"C4 C#4 D4"})

	// Anything else drops the finished leaf.
	c.Assert(m.Advance(70), qt.HasLen, 0)
	c.Assert(m.Live(), qt.HasLen, 0)
}

func TestPrefixPatternStaysLive(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("short", 60, 62), pat("long", 60, 62, 64))
	m := NewMatcher(lib)

	m.Advance(60)
	c.Assert(m.Advance(62), qt.DeepEquals, []ActionID{"short"})
	c.Assert(m.Advance(64), qt.DeepEquals, []ActionID{"long"})
}

func TestSeveralPatternsCompleteOnOneNote(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("pair", 60, 60), pat("single", 60))
	m := NewMatcher(lib)

	c.Assert(m.Advance(60), qt.DeepEquals, []ActionID{"single"})
	// The live "60" completes the pair before the fresh start completes single.
	c.Assert(m.Advance(60), qt.DeepEquals, []ActionID{"pair", "single"})
}

func TestEmptyLibrary(t *testing.T) {
	c := qt.New(t)
	m := NewMatcher(mustCompile(c))
	for p := 0; p < 128; p++ {
		c.Assert(m.Advance(uint8(p)), qt.HasLen, 0)
	}
	c.Assert(m.Live(), qt.HasLen, 0)
}

func TestAdvanceDoesNotGrowLiveSet(t *testing.T) {
	c := qt.New(t)
	lib := mustCompile(c, pat("A", Any, Any, Any, Any), pat("B", 60, 60, 60))
	m := NewMatcher(lib)
	for i := 0; i < 1000; i++ {
		m.Advance(60)
	}
	c.Assert(len(m.Live()) <= lib.Len(), qt.IsTrue)
	c.Assert(cap(m.live), qt.Equals, lib.Len())
}
