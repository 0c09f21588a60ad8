package main

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"

	"go-motif/pattern"
)

func TestRunMatch(t *testing.T) {
	c := qt.New(t)
	lib, err := pattern.Compile([]pattern.Pattern{
		{Name: "A", Notes: []pattern.Token{60, 61, 62}, Action: "A"},
		{Name: "B", Notes: []pattern.Token{60, 60, 61}, Action: "B"},
	})
	c.Assert(err, qt.IsNil)

	var buf bytes.Buffer
	err = runMatch(&buf, lib, []string{"60", "C4", "61", "D4"})
	c.Assert(err, qt.IsNil)
	c.Assert(buf.String(), qt.Equals, `C4
     live C4
C4
     live C4 C4
     live C4
C#4 fire B
     live C4 C4 C#4
     live C4 C#4
D4 fire A
     live C4 C#4 D4
`)
}

func TestRunMatchRejectsWildcard(t *testing.T) {
	c := qt.New(t)
	lib, err := pattern.Compile(nil)
	c.Assert(err, qt.IsNil)
	err = runMatch(&bytes.Buffer{}, lib, []string{"60", "*"})
	c.Assert(err, qt.ErrorMatches, "note 1: a played note cannot be a wildcard")
}

func TestRunMatchBadNote(t *testing.T) {
	c := qt.New(t)
	lib, err := pattern.Compile(nil)
	c.Assert(err, qt.IsNil)
	err = runMatch(&bytes.Buffer{}, lib, []string{"Q9"})
	c.Assert(err, qt.ErrorMatches, `note 0: bad note name "Q9"`)
	c.Assert(runMatch(&bytes.Buffer{}, lib, nil), qt.ErrorMatches, "match needs at least one note")
}
