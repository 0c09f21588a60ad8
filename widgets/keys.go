package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeyStyle holds the glyphs and colors of a key strip.
type KeyStyle struct {
	Held, White, Black                rune
	HeldColor, WhiteColor, BlackColor [3]uint8
}

// RenderKey renders a single colored glyph
func RenderKey(color [3]uint8, r rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(r))
}

func isBlack(note int) bool {
	switch note % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// RenderKeyStrip renders notes lo..hi as one glyph each, with an octave
// label row below. held is indexed by MIDI note.
func RenderKeyStrip(held [128]bool, lo, hi int, ks KeyStyle) string {
	lo, hi = max(lo, 0), min(hi, 127)
	var keys, labels strings.Builder
	for n := lo; n <= hi; n++ {
		switch {
		case held[n]:
			keys.WriteString(RenderKey(ks.HeldColor, ks.Held))
		case isBlack(n):
			keys.WriteString(RenderKey(ks.BlackColor, ks.Black))
		default:
			keys.WriteString(RenderKey(ks.WhiteColor, ks.White))
		}
	}
	for n := lo; n <= hi; {
		if n%12 == 0 {
			label := fmt.Sprintf("C%d", n/12-1)
			if n+len(label) <= hi+1 {
				labels.WriteString(label)
				n += len(label)
				continue
			}
		}
		labels.WriteByte(' ')
		n++
	}
	return keys.String() + "\n" + labels.String()
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, symbol rune, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderKey(color, symbol), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
