package screen

import (
	"fmt"
	"io"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

// Compositor double-buffers the terminal. Views draw freely into the back
// buffer; Render computes the minimal set of changed cells against the
// front buffer and emits batched ANSI sequences for just those runs.
//
// The compositor is the only component that touches the terminal output
// stream.
type Compositor struct {
	out     io.Writer
	profile termenv.Profile
	log     zerolog.Logger

	front *Buffer
	back  *Buffer

	fullRefresh bool

	// Desired cursor state, applied after content differences are flushed
	// (supports an editable prompt coexisting with the data pane).
	cursorX       int
	cursorY       int
	cursorVisible bool

	// Terminal cursor position as of the last emitted byte; used to skip
	// redundant cursor moves. -1 = unknown.
	penX, penY int
}

// RenderStats reports what one Render emitted, for tests and debug logging.
type RenderStats struct {
	Runs        int
	Cells       int
	CursorMoves int
	FullRefresh bool
}

func NewCompositor(out io.Writer, width, height int, profile termenv.Profile, log zerolog.Logger) *Compositor {
	return &Compositor{
		out:         out,
		profile:     profile,
		log:         log,
		front:       NewBuffer(width, height),
		back:        NewBuffer(width, height),
		fullRefresh: true,
		penX:        -1,
		penY:        -1,
	}
}

// Back is the draw buffer for the next frame.
func (c *Compositor) Back() *Buffer { return c.back }

func (c *Compositor) Size() (int, int) { return c.back.width, c.back.height }

// SetCursor records where the terminal cursor should rest after the next
// Render, and whether it is visible.
func (c *Compositor) SetCursor(x, y int, visible bool) {
	c.cursorX = x
	c.cursorY = y
	c.cursorVisible = visible
}

// Invalidate forces the next Render to clear and repaint everything.
func (c *Compositor) Invalidate() { c.fullRefresh = true }

// Resize reallocates both buffers at the new dimensions, best-effort
// copying the overlapping region, and schedules a full refresh.
func (c *Compositor) Resize(width, height int) {
	newFront := NewBuffer(width, height)
	newBack := NewBuffer(width, height)
	c.front.copyInto(newFront)
	c.back.copyInto(newBack)
	c.front = newFront
	c.back = newBack
	c.fullRefresh = true
	c.penX, c.penY = -1, -1
}

// Render flushes the back buffer to the terminal. An empty diff emits no
// I/O. Output errors are logged and answered with a full-refresh attempt on
// the next frame; they never crash the frame loop.
func (c *Compositor) Render() RenderStats {
	var sb strings.Builder
	stats := RenderStats{FullRefresh: c.fullRefresh}

	if c.fullRefresh {
		sb.WriteString("\x1b[2J")
		c.penX, c.penY = -1, -1
	}

	for y := 0; y < c.back.height; y++ {
		c.renderRow(&sb, y, &stats)
	}

	// Final cursor placement once content is flushed.
	if c.cursorVisible {
		c.moveTo(&sb, c.cursorX, c.cursorY, &stats)
		sb.WriteString("\x1b[?25h")
	} else if sb.Len() > 0 {
		sb.WriteString("\x1b[?25l")
	}

	if sb.Len() > 0 {
		// One write syscall per frame.
		if _, err := io.WriteString(c.out, sb.String()); err != nil {
			c.log.Error().Err(err).Msg("screen: render write failed, scheduling full refresh")
			c.fullRefresh = true
			c.penX, c.penY = -1, -1
			return stats
		}
	}

	c.back.copyInto(c.front)
	c.fullRefresh = false
	return stats
}

// renderRow finds the changed runs of one row and emits each as a single
// batched styled string.
func (c *Compositor) renderRow(sb *strings.Builder, y int, stats *RenderStats) {
	w := c.back.width
	x := 0
	for x < w {
		if !c.cellDirty(x, y) {
			x++
			continue
		}
		start := x
		for x < w && c.cellDirty(x, y) {
			x++
		}
		c.emitRun(sb, start, x, y, stats)
	}
}

func (c *Compositor) cellDirty(x, y int) bool {
	if c.fullRefresh {
		return true
	}
	return c.back.Get(x, y) != c.front.Get(x, y)
}

// emitRun writes cells [start, end) of row y: one cursor move (skipped when
// the pen already rests there), per-cell style codes, one reset at run end.
func (c *Compositor) emitRun(sb *strings.Builder, start, end, y int, stats *RenderStats) {
	stats.Runs++
	c.moveTo(sb, start, y, stats)

	prev := Blank
	styled := false
	first := true
	for x := start; x < end; x++ {
		cell := c.back.Get(x, y)
		if first || !sameStyle(prev, cell) {
			if styled {
				sb.WriteString("\x1b[0m")
			}
			seq := c.styleSequence(cell)
			if seq != "" {
				sb.WriteString(seq)
				styled = true
			} else {
				styled = false
			}
		}
		sb.WriteRune(cell.Ch)
		if xansi.StringWidth(string(cell.Ch)) == 2 {
			// The wide rune covers its shadow cell; don't emit it.
			x++
		}
		prev = cell
		first = false
		stats.Cells++
	}
	if styled {
		sb.WriteString("\x1b[0m")
	}
	c.penX, c.penY = end, y
}

func (c *Compositor) moveTo(sb *strings.Builder, x, y int, stats *RenderStats) {
	if c.penX == x && c.penY == y {
		return
	}
	fmt.Fprintf(sb, "\x1b[%d;%dH", y+1, x+1)
	c.penX, c.penY = x, y
	stats.CursorMoves++
}

// styleSequence builds the SGR introducer for a cell, downgrading colors
// through the detected terminal profile. Empty when the cell is default.
func (c *Compositor) styleSequence(cell Cell) string {
	var parts []string
	if cell.Bold {
		parts = append(parts, "1")
	}
	if cell.Italic {
		parts = append(parts, "3")
	}
	if cell.Underline {
		parts = append(parts, "4")
	}
	if c.profile != termenv.Ascii {
		if cell.FG != nil {
			if seq := c.profile.Convert(cell.FG).Sequence(false); seq != "" {
				parts = append(parts, seq)
			}
		}
		if cell.BG != nil {
			if seq := c.profile.Convert(cell.BG).Sequence(true); seq != "" {
				parts = append(parts, seq)
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(parts, ";") + "m"
}
