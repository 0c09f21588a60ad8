package pattern

import (
	"fmt"
	"strconv"
	"strings"

	errgo "gopkg.in/errgo.v1"
)

// Token is one position of a pattern: a MIDI pitch 0-127, or Any.
type Token int16

// Any matches every pitch.
const Any Token = -1

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var semitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// Valid reports whether t is Any or a pitch in 0-127.
func (t Token) Valid() bool {
	return t == Any || (t >= 0 && t <= 127)
}

// String returns the note name (C4 = 60), or "*" for Any.
func (t Token) String() string {
	if t == Any {
		return "*"
	}
	if !t.Valid() {
		return fmt.Sprintf("?%d", int(t))
	}
	return fmt.Sprintf("%s%d", noteNames[t%12], int(t)/12-1)
}

// ParseToken parses a pitch number ("60"), a note name ("C4", "F#3", "Bb2")
// or a wildcard ("*", "x", "any").
func ParseToken(s string) (Token, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "*", "x", "any":
		return Any, nil
	case "":
		return 0, errgo.WithCausef(nil, ErrBadToken, "empty note token")
	}

	if n, err := strconv.Atoi(s); err == nil {
		t := Token(n)
		if n < 0 || n > 127 {
			return 0, errgo.WithCausef(nil, ErrBadToken, "pitch %d out of range 0-127", n)
		}
		return t, nil
	}

	letter := s[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	semi, ok := semitones[letter]
	if !ok {
		return 0, errgo.WithCausef(nil, ErrBadToken, "bad note name %q", s)
	}
	rest := s[1:]
	if len(rest) > 0 {
		switch rest[0] {
		case '#':
			semi++
			rest = rest[1:]
		case 'b':
			semi--
			rest = rest[1:]
		}
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, errgo.WithCausef(nil, ErrBadToken, "bad octave in note name %q", s)
	}
	n := (octave+1)*12 + semi
	if n < 0 || n > 127 {
		return 0, errgo.WithCausef(nil, ErrBadToken, "note %q out of range 0-127", s)
	}
	return Token(n), nil
}

// ParseTokens parses every element of ss with ParseToken.
func ParseTokens(ss []string) ([]Token, error) {
	tokens := make([]Token, 0, len(ss))
	for i, s := range ss {
		t, err := ParseToken(s)
		if err != nil {
			return nil, errgo.NoteMask(err, fmt.Sprintf("note %d", i), errgo.Any)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// FormatTokens renders tokens separated by spaces.
func FormatTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
