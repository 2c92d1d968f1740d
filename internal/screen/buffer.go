package screen

import (
	xansi "github.com/charmbracelet/x/ansi"
)

// Buffer is a width×height grid of cells. The compositor owns two of these
// (front = what the terminal shows, back = the frame under construction);
// views draw into the back buffer through the setters here.
type Buffer struct {
	width  int
	height int
	cells  []Cell
}

func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	b := &Buffer{width: width, height: height, cells: make([]Cell, width*height)}
	b.Clear()
	return b
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

func (b *Buffer) Get(x, y int) Cell {
	if !b.inBounds(x, y) {
		return Blank
	}
	return b.cells[y*b.width+x]
}

// Set writes one cell. Out-of-bounds writes are dropped so drawing code can
// clip naturally at the edges.
func (b *Buffer) Set(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	if c.Ch == 0 {
		c.Ch = ' '
	}
	b.cells[y*b.width+x] = c
}

// SetText writes a styled string starting at (x, y), clipping at the right
// edge. Wide runes occupy two cells; the shadow cell is blanked with the
// same style so diffs repaint it together with the rune.
func (b *Buffer) SetText(x, y int, text string, st Style) int {
	for _, r := range text {
		if x >= b.width {
			break
		}
		w := xansi.StringWidth(string(r))
		if w <= 0 {
			continue
		}
		b.Set(x, y, st.cell(r))
		if w == 2 && x+1 < b.width {
			b.Set(x+1, y, st.cell(' '))
		}
		x += w
	}
	return x
}

// ClearRegion resets a rectangle to blank cells.
func (b *Buffer) ClearRegion(x, y, w, h int) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			b.Set(xx, yy, Blank)
		}
	}
}

// FillRegion stamps a styled space across a rectangle (background painting).
func (b *Buffer) FillRegion(x, y, w, h int, st Style) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			b.Set(xx, yy, st.cell(' '))
		}
	}
}

func (b *Buffer) Clear() {
	for i := range b.cells {
		b.cells[i] = Blank
	}
}

// copyInto best-effort copies the overlapping top-left region into dst.
// Used on resize, where the buffers are recreated rather than resized.
func (b *Buffer) copyInto(dst *Buffer) {
	w := b.width
	if dst.width < w {
		w = dst.width
	}
	h := b.height
	if dst.height < h {
		h = dst.height
	}
	for y := 0; y < h; y++ {
		copy(dst.cells[y*dst.width:y*dst.width+w], b.cells[y*b.width:y*b.width+w])
	}
}

// Row returns the plain text of one row, mostly for tests.
func (b *Buffer) Row(y int) string {
	if y < 0 || y >= b.height {
		return ""
	}
	runes := make([]rune, 0, b.width)
	for x := 0; x < b.width; x++ {
		runes = append(runes, b.Get(x, y).Ch)
	}
	return string(runes)
}
