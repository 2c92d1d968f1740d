package grid

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"taskdeck/internal/screen"
)

// Draw paints the full frame into the compositor's back buffer. The
// compositor handles diffing; Draw always describes the complete screen.
func (g *Grid) Draw(c *screen.Compositor) {
	buf := c.Back()
	buf.Clear()
	c.SetCursor(0, 0, false)

	if g.showHelp {
		g.drawHelp(buf)
		return
	}
	if g.kanban != nil {
		g.drawKanban(buf)
		g.drawChrome(buf, c)
		return
	}
	g.drawTable(buf, c)
	g.drawChrome(buf, c)
}

func (g *Grid) drawTable(buf *screen.Buffer, c *screen.Compositor) {
	th := g.opt.Theme

	// Header row.
	x := selectionMargin
	for i, col := range g.cols {
		w := g.widths[i]
		if w <= 0 {
			continue
		}
		st := th.Header
		if g.sortDir != SortNone && col.Name == g.sortField {
			st = th.HeaderSort
		}
		title := col.Name
		if g.sortDir != SortNone && col.Name == g.sortField {
			if g.sortDir == SortAsc {
				title += " ^"
			} else {
				title += " v"
			}
		}
		buf.SetText(x, 0, pad(title, w), st)
		x += w + 1
	}

	visible := g.visibleRows()
	for i := 0; i < visible; i++ {
		idx := g.scrollOff + i
		if idx >= len(g.rows) {
			break
		}
		g.drawRow(buf, c, idx, 1+i)
	}
}

func (g *Grid) drawRow(buf *screen.Buffer, c *screen.Compositor, idx, y int) {
	th := g.opt.Theme
	row := g.rows[idx]
	isSelected := idx == g.selectedRow
	key := row.Entity.Key()

	if g.selected[key] {
		buf.SetText(0, y, "*", th.MultiMark)
	}
	if isSelected {
		buf.SetText(1, y, ">", th.SelectedBar)
	}

	x := selectionMargin
	for i, col := range g.cols {
		w := g.widths[i]
		if w <= 0 {
			continue
		}
		editing := g.edit != nil && isSelected && g.edit.col == i
		if editing {
			g.drawEditCell(buf, c, x, y, w)
		} else {
			value, _ := row.Field(col.Name)
			display := g.opt.Registry.Format(g.opt.Domain, col.Name, value)
			st := g.cellStyle(row, col.Name, isSelected)
			if g.edit != nil && isSelected {
				if staged, ok := g.edit.pending[col.Name]; ok {
					display = staged
					st = th.EditField
				}
			}
			buf.SetText(x, y, pad(display, w), st)
		}
		x += w + 1
	}
}

// cellStyle picks per-cell emphasis: overdue dates and p1 stand out, done
// rows fade, selection wins.
func (g *Grid) cellStyle(row rowLike, col string, selected bool) screen.Style {
	th := g.opt.Theme
	if selected {
		return th.Selected
	}
	if status, _ := row.Field("status"); status == "done" {
		return th.Done
	}
	switch col {
	case "due":
		// Stored dates are ISO, so string order is date order.
		if v, _ := row.Field(col); v != "" && v < g.today() {
			return th.Overdue
		}
	case "priority":
		if v, _ := row.Field(col); v == "1" {
			return th.Priority1
		}
	}
	return th.Row
}

type rowLike interface {
	Field(string) (string, bool)
}

func (g *Grid) today() string {
	return g.opt.Registry.Now().Format("2006-01-02")
}

// drawEditCell renders the live edit buffer with the terminal cursor
// placed at the edit position.
func (g *Grid) drawEditCell(buf *screen.Buffer, c *screen.Compositor, x, y, w int) {
	th := g.opt.Theme
	e := g.edit
	st := th.EditField
	if e.errMsg != "" && g.cols[e.col].Name == e.errField {
		st = th.EditError
	}

	text := string(e.buf)
	// Keep the cursor visible when the value overflows the cell.
	offset := 0
	if e.cursor > w-1 {
		offset = e.cursor - w + 1
	}
	visible := text
	if offset < len(e.buf) {
		visible = string(e.buf[offset:])
	}
	buf.SetText(x, y, pad(xansi.Truncate(visible, w, ""), w), st)
	c.SetCursor(x+e.cursor-offset, y, true)
}

// drawChrome paints the filter prompt and the status bar.
func (g *Grid) drawChrome(buf *screen.Buffer, c *screen.Compositor) {
	th := g.opt.Theme
	statusY := g.height - 1

	if g.filter != nil {
		y := statusY - 1
		buf.FillRegion(0, y, g.width, 1, th.FilterBar)
		prompt := "/" + string(g.filter.buf)
		buf.SetText(0, y, prompt, th.FilterBar)
		c.SetCursor(1+g.filter.cursor, y, true)
	}

	buf.FillRegion(0, statusY, g.width, 1, th.StatusBar)
	left := g.statusLine()
	st := th.StatusBar
	if g.statusErr {
		st = th.StatusError
	}
	buf.SetText(0, statusY, left, st)

	hint := "? help  q quit"
	hx := g.width - xansi.StringWidth(hint)
	if hx > xansi.StringWidth(left)+2 {
		buf.SetText(hx, statusY, hint, th.StatusBar)
	}
}

func (g *Grid) statusLine() string {
	if g.statusMsg != "" {
		return g.statusMsg
	}
	if g.edit != nil {
		if g.edit.errMsg != "" {
			return fmt.Sprintf("%s: %s", g.edit.errField, g.edit.errMsg)
		}
		return "editing: Tab next field, Enter save, Esc cancel"
	}
	n := len(g.rows)
	total := g.result.ActualRowCount
	parts := []string{fmt.Sprintf("%d/%d rows", n, total)}
	if g.appliedFilter != "" {
		parts = append(parts, fmt.Sprintf("filter %q", g.appliedFilter))
	}
	if len(g.selected) > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", len(g.selected)))
	}
	if g.kanban != nil && g.kanban.picked != "" {
		parts = append(parts, "moving: arrows pick lane, Enter drop, Esc cancel")
	}
	return strings.Join(parts, "  ")
}

// drawKanban lays lanes out side by side in equal widths.
func (g *Grid) drawKanban(buf *screen.Buffer) {
	th := g.opt.Theme
	kb := g.kanban
	if len(kb.lanes) == 0 {
		buf.SetText(selectionMargin, 1, "no rows", th.RowMuted)
		return
	}

	laneWidth := (g.width - 1) / len(kb.lanes)
	if laneWidth < 10 {
		laneWidth = 10
	}
	maxCards := g.height - 3 // lane header + status bar

	for li, lane := range kb.lanes {
		x := li * laneWidth
		if x+laneWidth > g.width {
			break
		}
		header := fmt.Sprintf(" %s (%d) ", lane.Value, len(lane.Cards))
		hs := th.LaneHeader
		if li == kb.laneIdx {
			hs = th.HeaderSort
		}
		buf.SetText(x, 0, pad(header, laneWidth-1), hs)

		for ci, card := range lane.Cards {
			if ci >= maxCards {
				break
			}
			text, _ := card.Field("text")
			if text == "" {
				text, _ = card.Field("name")
			}
			label := fmt.Sprintf("%s %s", card.Entity.Key(), text)
			st := th.Row
			focused := li == kb.laneIdx && ci == kb.cardIdx
			if card.Entity.Key() == kb.picked {
				st = th.LanePicked
				label = "* " + label
			} else if focused && kb.picked == "" {
				st = th.Selected
			} else if focused {
				st = th.SelectedBar
			}
			buf.SetText(x, 1+ci, pad(" "+xansi.Truncate(label, laneWidth-3, "…"), laneWidth-1), st)
		}
	}
}

// pad truncates or space-fills to exactly w display columns.
func pad(s string, w int) string {
	s = xansi.Truncate(s, w, "…")
	gap := w - xansi.StringWidth(s)
	if gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}
