package main

import (
	"fmt"
	"io"

	errgo "gopkg.in/errgo.v1"

	"go-motif/pattern"
)

// runMatch feeds notes through a fresh matcher over lib and prints, for
// every note, the completed actions and the remaining partial matches.
func runMatch(w io.Writer, lib *pattern.Library, notes []string) error {
	if len(notes) == 0 {
		return errgo.New("match needs at least one note")
	}
	tokens, err := pattern.ParseTokens(notes)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	m := pattern.NewMatcher(lib)
	for i, t := range tokens {
		if t == pattern.Any {
			return errgo.Newf("note %d: a played note cannot be a wildcard", i)
		}
		fired := m.Advance(uint8(t))
		fmt.Fprint(w, t)
		for _, id := range fired {
			fmt.Fprintf(w, " fire %s", id)
		}
		fmt.Fprintln(w)
		for _, id := range m.Live() {
			fmt.Fprintf(w, "     live %s\n", pattern.FormatTokens(lib.Prefix(id)))
		}
	}
	return nil
}
