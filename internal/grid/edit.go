package grid

import (
	"errors"
	"fmt"

	"taskdeck/internal/store"
	"taskdeck/internal/term"
)

// editState is an in-progress row edit: the live buffer for one field plus
// the staged values of fields already hopped past with Tab. Nothing here
// touches the DataStore until the final Enter.
type editState struct {
	rowKey string
	col    int

	buf    []rune
	cursor int

	pending  map[string]string // field -> staged value (raw, pre-normalize)
	baseline map[string]string // field -> value at staging time

	errField string
	errMsg   string
}

// startEdit enters Editing on the selected cell, gated on the schema:
// non-editable or sensitive columns silently refuse.
func (g *Grid) startEdit() {
	row := g.currentRow()
	if row == nil || len(g.cols) == 0 {
		return
	}
	col := g.selectedCol
	if g.nav == NavRow {
		// Row mode edits the first editable column.
		col = g.firstEditableCol()
		if col < 0 {
			return
		}
	}
	if !g.editableCol(col) {
		return
	}
	g.edit = &editState{
		rowKey:   row.Entity.Key(),
		col:      col,
		pending:  map[string]string{},
		baseline: map[string]string{},
	}
	g.loadEditBuffer(col)
	g.state = StateEditing
}

func (g *Grid) firstEditableCol() int {
	for i := range g.cols {
		if g.editableCol(i) {
			return i
		}
	}
	return -1
}

func (g *Grid) editableCol(col int) bool {
	fs := g.opt.Registry.GetSchema(g.opt.Domain, g.cols[col].Name)
	if fs == nil || !fs.Editable {
		return false
	}
	if fs.Sensitive && !g.opt.AllowSensitiveEdits {
		return false
	}
	return true
}

// loadEditBuffer fills the buffer with the staged value if the field was
// already visited, else the row's current value.
func (g *Grid) loadEditBuffer(col int) {
	field := g.cols[col].Name
	e := g.edit
	e.col = col

	value, ok := e.pending[field]
	if !ok {
		row := g.currentRow()
		value, _ = row.Field(field)
		e.baseline[field] = value
	}
	e.buf = []rune(value)
	e.cursor = len(e.buf)
}

func (g *Grid) handleEditKey(k term.Key) {
	e := g.edit
	switch {
	case k.Code == term.KeyEscape:
		// Discard everything staged for the row.
		g.edit = nil
		g.state = StateBrowsing

	case k.Code == term.KeyEnter:
		g.commitEdits()

	case k.Code == term.KeyTab:
		g.stageCurrent()
		g.hopEdit(+1)
	case k.Code == term.KeyShiftTab:
		g.stageCurrent()
		g.hopEdit(-1)

	case k.Code == term.KeyLeft:
		if e.cursor > 0 {
			e.cursor--
		}
	case k.Code == term.KeyRight:
		if e.cursor < len(e.buf) {
			e.cursor++
		}
	case k.Code == term.KeyHome:
		e.cursor = 0
	case k.Code == term.KeyEnd:
		e.cursor = len(e.buf)

	case k.Code == term.KeyBackspace:
		if e.cursor > 0 {
			e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
			e.cursor--
		}
	case k.Code == term.KeyDelete:
		if e.cursor < len(e.buf) {
			e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)
		}
	case k.Code == term.KeyCtrlU:
		e.buf = e.buf[:0]
		e.cursor = 0

	case k.Code == term.KeyRune || k.Code == term.KeySpace:
		e.buf = append(e.buf[:e.cursor], append([]rune{k.Rune}, e.buf[e.cursor:]...)...)
		e.cursor++
	}
}

// stageCurrent moves the live buffer into the pending map.
func (g *Grid) stageCurrent() {
	e := g.edit
	field := g.cols[e.col].Name
	e.pending[field] = string(e.buf)
	e.errField, e.errMsg = "", ""
}

// hopEdit moves editing focus to the next editable column on the row,
// wrapping at the ends.
func (g *Grid) hopEdit(dir int) {
	e := g.edit
	n := len(g.cols)
	for i := 1; i <= n; i++ {
		col := ((e.col+dir*i)%n + n) % n
		if g.editableCol(col) {
			g.loadEditBuffer(col)
			return
		}
	}
}

// commitEdits validates every staged field and persists all of them, or
// none. A validation failure re-opens the offending field with an inline
// error, keeping the rest of the staged set intact. A conflict (the row
// changed underneath a staged field) behaves the same way.
func (g *Grid) commitEdits() {
	g.stageCurrent()
	e := g.edit

	type write struct {
		field string
		value string
	}
	writes := make([]write, 0, len(e.pending))

	for _, col := range g.cols {
		raw, ok := e.pending[col.Name]
		if !ok {
			continue
		}
		if base, tracked := e.baseline[col.Name]; tracked {
			if current, live := g.opt.Store.CurrentValue(g.opt.Domain, e.rowKey, col.Name); live && current != base {
				g.reopenWithError(col.Name, "changed outside this edit, review before saving")
				return
			}
		}
		normalized, err := g.opt.Registry.Normalize(g.opt.Domain, col.Name, raw)
		if err != nil {
			g.reopenWithError(col.Name, err.Error())
			return
		}
		if err := g.opt.Registry.Validate(g.opt.Domain, col.Name, normalized); err != nil {
			g.reopenWithError(col.Name, err.Error())
			return
		}
		if normalized != e.baseline[col.Name] {
			writes = append(writes, write{field: col.Name, value: normalized})
		}
	}

	if len(writes) > 0 {
		batch := make(map[string]string, len(writes))
		for _, w := range writes {
			batch[w.field] = w.value
		}
		if err := g.opt.Store.ApplyEdits(g.opt.Domain, e.rowKey, batch); err != nil {
			field := writes[0].field
			var conflict *store.EditConflictError
			if errors.As(err, &conflict) {
				if conflict.Field != "" {
					field = conflict.Field
				}
				g.reopenWithError(field, "row no longer exists")
				return
			}
			g.reopenWithError(field, err.Error())
			return
		}
	}

	g.edit = nil
	g.state = StateBrowsing
	g.refresh()
	if len(writes) > 0 {
		g.statusMsg = fmt.Sprintf("saved %d field(s)", len(writes))
	}
}

// reopenWithError returns editing focus to the failed field with the
// message shown inline; staged values for other fields stay put.
func (g *Grid) reopenWithError(field, msg string) {
	e := g.edit
	for i, c := range g.cols {
		if c.Name == field {
			g.loadEditBuffer(i)
			break
		}
	}
	e.errField, e.errMsg = field, msg
}
