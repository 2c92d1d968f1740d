// Package grid renders query results as an interactive table or kanban
// board: navigation, in-place editing with staged commits, multi-select,
// live filtering, sort cycling, and named views. It owns no terminal state
// itself; keys come in decoded and frames go out through the compositor.
package grid

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"taskdeck/internal/model"
	"taskdeck/internal/query"
	"taskdeck/internal/schema"
	"taskdeck/internal/store"
	"taskdeck/internal/term"
	"taskdeck/internal/theme"
)

// State is the top-level input mode.
type State int

const (
	StateBrowsing State = iota
	StateEditing
	StateMultiSelect
)

// NavMode picks which axis the plain arrow keys move on.
type NavMode int

const (
	NavRow NavMode = iota
	NavCell
)

// SortDir cycles None -> Asc -> Desc on F3.
type SortDir int

const (
	SortNone SortDir = iota
	SortAsc
	SortDesc
)

// DataStore is the write side the grid commits through. store.Conn
// implements it; tests use a recording double.
type DataStore interface {
	ApplyEdits(domain model.Domain, key string, fields map[string]string) error
	DeleteEntities(domain model.Domain, keys []string) error
	MoveGroupField(domain model.Domain, key, field, value string) error
	CurrentValue(domain model.Domain, key, field string) (string, bool)
}

// ViewStore persists F6/F7/F8 named view bundles.
type ViewStore interface {
	LoadViews() (*store.Views, error)
	SaveViews(*store.Views) error
}

// Options wires the grid's collaborators.
type Options struct {
	Domain   model.Domain
	Registry *schema.Registry
	Store    DataStore
	Theme    *theme.Theme
	Log      zerolog.Logger

	// Requery re-runs the originating query, e.g. after deletes or a
	// kanban move.
	Requery func() (*query.Result, error)

	// Query is the text that produced the result; saved into view bundles.
	Query string

	Views ViewStore

	// OnLoadView asks the owner to switch to a saved bundle. The owner
	// re-parses, re-evaluates, and calls SetResult.
	OnLoadView func(store.ViewBundle) error

	// AllowSensitiveEdits permits editing fields marked sensitive.
	AllowSensitiveEdits bool
}

// Grid is the whole interactive view state. All methods run on the input
// loop goroutine; nothing here is safe for concurrent use.
type Grid struct {
	opt Options

	result *query.Result
	rows   []query.Row // result rows after the live filter

	width, height int

	state       State
	nav         NavMode
	selectedRow int
	selectedCol int
	scrollOff   int

	sortField string
	sortDir   SortDir

	selected map[string]bool
	anchor   int

	edit          *editState
	filter        *filterState
	appliedFilter string

	kanban *kanbanState

	showHelp bool

	statusMsg string
	statusErr bool

	cols   []Column
	widths []int
}

func New(opt Options, res *query.Result) *Grid {
	g := &Grid{
		opt:      opt,
		selected: map[string]bool{},
	}
	g.SetResult(res)
	return g
}

// SetResult swaps in a fresh evaluation result, preserving selection
// position where possible.
func (g *Grid) SetResult(res *query.Result) {
	g.result = res
	g.applyFilter()
	if g.kanban != nil {
		g.rebuildLanes()
	}
	g.clampSelection()
	g.layout()
}

// SetOnLoadView installs the view-switch callback. Separate from Options
// because the owner needs the constructed grid to build it.
func (g *Grid) SetOnLoadView(fn func(store.ViewBundle) error) {
	g.opt.OnLoadView = fn
}

// EnterKanban switches to lane mode, partitioned by the result's group
// field (status when the query did not group).
func (g *Grid) EnterKanban() {
	field := g.result.GroupBy
	if field == "" {
		field = "status"
	}
	g.kanban = &kanbanState{field: field}
	g.rebuildLanes()
}

// SetSize updates the viewport after a resize.
func (g *Grid) SetSize(width, height int) {
	g.width, g.height = width, height
	g.layout()
	g.clampSelection()
}

// visibleRows is the data viewport height: total minus header and status
// bar, minus the filter bar when the prompt is open.
func (g *Grid) visibleRows() int {
	h := g.height - 2
	if g.filter != nil {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// HandleKey processes one keystroke and reports whether the session should
// end. Processing is synchronous; the caller draws afterwards.
func (g *Grid) HandleKey(k term.Key) (quit bool) {
	g.statusMsg, g.statusErr = "", false

	if g.showHelp {
		// Any key dismisses the overlay.
		g.showHelp = false
		return false
	}
	if g.edit != nil {
		g.handleEditKey(k)
		return false
	}
	if g.filter != nil {
		g.handleFilterKey(k)
		return false
	}
	if g.kanban != nil {
		return g.handleKanbanKey(k)
	}
	return g.handleBrowseKey(k)
}

func (g *Grid) handleBrowseKey(k term.Key) bool {
	switch {
	case k.Code == term.KeyCtrlC:
		return true
	case k.Code == term.KeyRune && (k.Rune == 'q' || k.Rune == 'Q'):
		return true
	case k.Code == term.KeyEscape:
		if len(g.selected) > 0 {
			g.clearSelection()
			return false
		}
		return true

	case k.Code == term.KeyRune && (k.Rune == '?' || k.Rune == 'h'):
		g.showHelp = true

	case k.Code == term.KeyUp && k.Shift:
		g.extendSelection(-1)
	case k.Code == term.KeyDown && k.Shift:
		g.extendSelection(+1)
	case k.Code == term.KeyUp:
		g.moveRow(-1)
	case k.Code == term.KeyDown:
		g.moveRow(+1)
	case k.Code == term.KeyPgUp:
		g.moveRow(-g.visibleRows())
	case k.Code == term.KeyPgDn:
		g.moveRow(+g.visibleRows())
	case k.Code == term.KeyHome:
		g.setRow(0)
	case k.Code == term.KeyEnd:
		g.setRow(len(g.rows) - 1)

	case k.Code == term.KeyLeft:
		if g.nav == NavCell {
			g.moveCol(-1)
		}
	case k.Code == term.KeyRight:
		if g.nav == NavCell {
			g.moveCol(+1)
		}

	case k.Code == term.KeyTab || k.Code == term.KeyShiftTab:
		if g.nav == NavRow {
			g.nav = NavCell
		} else {
			g.nav = NavRow
		}

	case k.Code == term.KeyEnter || k.Code == term.KeyF2:
		g.startEdit()

	case k.Code == term.KeyF3:
		g.cycleSort()

	case k.Code == term.KeySpace:
		g.toggleSelect()
	case k.Code == term.KeyCtrlA:
		g.selectAllVisible()

	case k.Code == term.KeyDelete:
		g.deleteSelected()

	case k.Code == term.KeyRune && k.Rune == '/', k.Code == term.KeyCtrlF:
		g.openFilter()

	case k.Code == term.KeyF6:
		g.saveView()
	case k.Code == term.KeyF7:
		g.loadView()
	case k.Code == term.KeyF8:
		g.listViews()
	}
	return false
}

func (g *Grid) moveRow(delta int) {
	g.setRow(g.selectedRow + delta)
}

// setRow clamps into [0, rowCount) and keeps the selection in view,
// scrolling exactly as far as needed.
func (g *Grid) setRow(row int) {
	if len(g.rows) == 0 {
		g.selectedRow, g.scrollOff = 0, 0
		return
	}
	if row < 0 {
		row = 0
	}
	if row >= len(g.rows) {
		row = len(g.rows) - 1
	}
	g.selectedRow = row
	g.scrollIntoView()
}

func (g *Grid) scrollIntoView() {
	visible := g.visibleRows()
	if g.selectedRow < g.scrollOff {
		g.scrollOff = g.selectedRow
	}
	if g.selectedRow > g.scrollOff+visible-1 {
		g.scrollOff = g.selectedRow - visible + 1
	}
	if g.scrollOff < 0 {
		g.scrollOff = 0
	}
}

func (g *Grid) moveCol(delta int) {
	col := g.selectedCol + delta
	if col < 0 {
		col = 0
	}
	if col >= len(g.cols) {
		col = len(g.cols) - 1
	}
	g.selectedCol = col
}

func (g *Grid) clampSelection() {
	if g.selectedRow >= len(g.rows) {
		g.selectedRow = len(g.rows) - 1
	}
	if g.selectedRow < 0 {
		g.selectedRow = 0
	}
	if g.selectedCol >= len(g.cols) && len(g.cols) > 0 {
		g.selectedCol = len(g.cols) - 1
	}
	g.scrollIntoView()
}

// cycleSort advances None -> Asc -> Desc -> None on the focused column and
// reorders in place. None restores the evaluator's original order.
func (g *Grid) cycleSort() {
	if len(g.cols) == 0 {
		return
	}
	field := g.cols[g.selectedCol].Name
	if field != g.sortField {
		g.sortField, g.sortDir = field, SortNone
	}
	g.sortDir = (g.sortDir + 1) % 3

	g.applyFilter() // restore original order first
	if g.sortDir != SortNone {
		query.SortStable(g.rows, []query.SortKey{{Field: field, Desc: g.sortDir == SortDesc}})
	}
	g.clampSelection()
}

func (g *Grid) toggleSelect() {
	row := g.currentRow()
	if row == nil {
		return
	}
	key := row.Entity.Key()
	if g.selected[key] {
		delete(g.selected, key)
	} else {
		g.selected[key] = true
	}
	g.anchor = g.selectedRow
	g.state = StateMultiSelect
	if len(g.selected) == 0 {
		g.state = StateBrowsing
	}
}

// extendSelection grows a contiguous range from the anchor while moving.
func (g *Grid) extendSelection(delta int) {
	if len(g.rows) == 0 {
		return
	}
	if g.state != StateMultiSelect {
		g.anchor = g.selectedRow
		g.state = StateMultiSelect
	}
	g.moveRow(delta)
	lo, hi := g.anchor, g.selectedRow
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		g.selected[g.rows[i].Entity.Key()] = true
	}
}

func (g *Grid) selectAllVisible() {
	for _, r := range g.rows {
		g.selected[r.Entity.Key()] = true
	}
	if len(g.selected) > 0 {
		g.state = StateMultiSelect
	}
}

func (g *Grid) clearSelection() {
	g.selected = map[string]bool{}
	g.state = StateBrowsing
}

// deleteSelected removes the multi-selection, or the current row when
// nothing is marked, then refreshes from the store.
func (g *Grid) deleteSelected() {
	keys := make([]string, 0, len(g.selected))
	for k := range g.selected {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		row := g.currentRow()
		if row == nil {
			return
		}
		keys = []string{row.Entity.Key()}
	}
	if err := g.opt.Store.DeleteEntities(g.opt.Domain, keys); err != nil {
		g.setError(fmt.Sprintf("delete failed: %v", err))
		return
	}
	g.clearSelection()
	g.refresh()
	g.statusMsg = fmt.Sprintf("deleted %d row(s)", len(keys))
}

// refresh re-runs the query and reloads rows, keeping the cursor stable.
func (g *Grid) refresh() {
	if g.opt.Requery == nil {
		return
	}
	res, err := g.opt.Requery()
	if err != nil {
		g.setError(fmt.Sprintf("refresh failed: %v", err))
		return
	}
	g.SetResult(res)
}

func (g *Grid) currentRow() *query.Row {
	if g.selectedRow < 0 || g.selectedRow >= len(g.rows) {
		return nil
	}
	return &g.rows[g.selectedRow]
}

func (g *Grid) setError(msg string) {
	g.statusMsg, g.statusErr = msg, true
	g.opt.Log.Warn().Str("grid", string(g.opt.Domain)).Msg(msg)
}

func (g *Grid) layout() {
	if g.result == nil {
		return
	}
	g.cols = buildColumns(g.opt.Registry, g.opt.Domain, g.result)
	g.widths = allocateWidths(g.cols, g.width)
}

// saveView stores the current query and presentation under the quick slot.
func (g *Grid) saveView() {
	if g.opt.Views == nil {
		return
	}
	v, err := g.opt.Views.LoadViews()
	if err != nil {
		g.setError(fmt.Sprintf("views unavailable: %v", err))
		return
	}
	bundle := store.ViewBundle{
		Name:    "quick",
		Query:   g.opt.Query,
		Columns: g.result.Columns,
	}
	if g.sortDir != SortNone {
		dir := "+"
		if g.sortDir == SortDesc {
			dir = "-"
		}
		bundle.Sort = g.sortField + dir
	}
	v.Slots["quick"] = bundle
	v.LastUse = "quick"
	if err := g.opt.Views.SaveViews(v); err != nil {
		g.setError(fmt.Sprintf("save view: %v", err))
		return
	}
	g.statusMsg = "view saved (F7 to reload)"
}

func (g *Grid) loadView() {
	if g.opt.Views == nil || g.opt.OnLoadView == nil {
		return
	}
	v, err := g.opt.Views.LoadViews()
	if err != nil {
		g.setError(fmt.Sprintf("views unavailable: %v", err))
		return
	}
	slot := v.LastUse
	if slot == "" {
		slot = "quick"
	}
	bundle, ok := v.Slots[slot]
	if !ok {
		g.setError("no saved view")
		return
	}
	if err := g.opt.OnLoadView(bundle); err != nil {
		g.setError(fmt.Sprintf("load view: %v", err))
		return
	}
	g.statusMsg = fmt.Sprintf("loaded view %q", bundle.Name)
}

func (g *Grid) listViews() {
	if g.opt.Views == nil {
		return
	}
	v, err := g.opt.Views.LoadViews()
	if err != nil {
		g.setError(fmt.Sprintf("views unavailable: %v", err))
		return
	}
	if len(v.Slots) == 0 {
		g.statusMsg = "no saved views"
		return
	}
	names := make([]string, 0, len(v.Slots))
	for name := range v.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	g.statusMsg = "views: " + strings.Join(names, ", ")
}
