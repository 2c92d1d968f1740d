// Package screen owns the terminal cell grid: a double-buffered compositor
// that converts "what the UI wants on screen" into the minimal ANSI output
// needed to display it.
package screen

import "github.com/muesli/termenv"

// Cell is one styled terminal cell. A nil color means the terminal default.
// The concrete termenv color types are comparable, so Cell supports ==,
// which is what the frame diff relies on.
type Cell struct {
	Ch        rune
	FG        termenv.Color
	BG        termenv.Color
	Bold      bool
	Italic    bool
	Underline bool
}

// Blank is the empty cell: a space with default styling.
var Blank = Cell{Ch: ' '}

// Style carries the non-character part of a cell, for callers that stamp
// the same look across a text run.
type Style struct {
	FG        termenv.Color
	BG        termenv.Color
	Bold      bool
	Italic    bool
	Underline bool
}

func (s Style) cell(ch rune) Cell {
	return Cell{Ch: ch, FG: s.FG, BG: s.BG, Bold: s.Bold, Italic: s.Italic, Underline: s.Underline}
}

// sameStyle ignores the character, comparing only the styling.
func sameStyle(a, b Cell) bool {
	return a.FG == b.FG && a.BG == b.BG && a.Bold == b.Bold && a.Italic == b.Italic && a.Underline == b.Underline
}
