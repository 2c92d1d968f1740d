package grid

import (
	"taskdeck/internal/screen"
)

type helpEntry struct {
	key  string
	text string
}

var tableHelp = []helpEntry{
	{"Up/Down", "move selection"},
	{"PgUp/PgDn", "move by a page"},
	{"Home/End", "first / last row"},
	{"Tab", "toggle row / cell navigation"},
	{"Left/Right", "change column (cell mode)"},
	{"Enter, F2", "edit the selected cell"},
	{"F3", "cycle sort on the focused column"},
	{"Space", "toggle multi-select"},
	{"Shift+Up/Down", "extend selection"},
	{"Ctrl+A", "select all visible rows"},
	{"Delete", "delete selected row(s)"},
	{"/, Ctrl+F", "live filter (re: or /../ for regex)"},
	{"F6 / F7 / F8", "save / load / list named views"},
	{"q, Ctrl+C, Esc", "quit"},
}

var editHelp = []helpEntry{
	{"Tab / Shift+Tab", "stage field, edit next / previous"},
	{"Enter", "save all staged fields"},
	{"Esc", "discard staged edits"},
	{"Ctrl+U", "clear the field"},
}

var kanbanHelp = []helpEntry{
	{"Left/Right", "change lane"},
	{"Up/Down", "change card"},
	{"Space", "pick up / drop a card"},
	{"Enter", "drop the picked card"},
	{"Esc", "cancel the move"},
}

// drawHelp replaces the whole frame with the key reference. Any key
// returns to the previous view.
func (g *Grid) drawHelp(buf *screen.Buffer) {
	th := g.opt.Theme
	y := 1
	put := func(title string, entries []helpEntry) {
		buf.SetText(2, y, title, th.Header)
		y++
		for _, e := range entries {
			if y >= g.height-1 {
				return
			}
			buf.SetText(4, y, e.key, th.HelpKey)
			buf.SetText(22, y, e.text, th.HelpText)
			y++
		}
		y++
	}

	put("Navigation & actions", tableHelp)
	put("While editing", editHelp)
	put("Kanban board", kanbanHelp)

	if y < g.height {
		buf.SetText(2, g.height-1, "press any key to close", th.RowMuted)
	}
}
