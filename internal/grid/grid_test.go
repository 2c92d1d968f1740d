package grid

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taskdeck/internal/model"
	"taskdeck/internal/query"
	"taskdeck/internal/schema"
	"taskdeck/internal/store"
	"taskdeck/internal/term"
	"taskdeck/internal/theme"
)

var gridNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	tasks   map[string]*model.Task
	deleted [][]string
	moves   []string
	applies []string
}

func (f *fakeStore) applyEdit(_ model.Domain, key, field, value string) error {
	t, ok := f.tasks[key]
	if !ok {
		return &store.EditConflictError{Domain: model.DomainTask, Key: key, Field: field, Reason: "row no longer exists"}
	}
	if err := t.SetField(field, value); err != nil {
		return err
	}
	f.applies = append(f.applies, fmt.Sprintf("%s.%s=%s", key, field, value))
	return nil
}

func (f *fakeStore) ApplyEdits(d model.Domain, key string, fields map[string]string) error {
	if _, ok := f.tasks[key]; !ok {
		return &store.EditConflictError{Domain: model.DomainTask, Key: key, Reason: "row no longer exists"}
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.applyEdit(d, key, name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) DeleteEntities(_ model.Domain, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	f.deleted = append(f.deleted, sorted)
	for _, k := range keys {
		delete(f.tasks, k)
	}
	return nil
}

func (f *fakeStore) MoveGroupField(d model.Domain, key, field, value string) error {
	f.moves = append(f.moves, fmt.Sprintf("%s.%s=%s", key, field, value))
	return f.applyEdit(d, key, field, value)
}

func (f *fakeStore) CurrentValue(_ model.Domain, key, field string) (string, bool) {
	t, ok := f.tasks[key]
	if !ok {
		return "", false
	}
	return t.Field(field)
}

func (f *fakeStore) result() *query.Result {
	ids := make([]int, 0, len(f.tasks))
	for k := range f.tasks {
		id, _ := strconv.Atoi(k)
		ids = append(ids, id)
	}
	sort.Ints(ids)
	rows := make([]query.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, query.Row{Entity: *f.tasks[strconv.Itoa(id)]})
	}
	return &query.Result{
		Rows:           rows,
		Columns:        []string{"id", "text", "project", "priority", "due", "tags"},
		ActualRowCount: len(rows),
	}
}

func testGrid(t *testing.T, n int) (*Grid, *fakeStore) {
	t.Helper()
	fs := &fakeStore{tasks: map[string]*model.Task{}}
	statuses := []string{"open", "doing", "open", "done"}
	for i := 1; i <= n; i++ {
		fs.tasks[strconv.Itoa(i)] = &model.Task{
			ID:        i,
			Text:      fmt.Sprintf("task %d", i),
			Project:   "web shop",
			Status:    statuses[i%len(statuses)],
			CreatedAt: gridNow,
		}
	}
	reg := schema.NewRegistry()
	reg.Now = func() time.Time { return gridNow }
	g := New(Options{
		Domain:   model.DomainTask,
		Registry: reg,
		Store:    fs,
		Theme:    theme.ForTest(),
		Log:      zerolog.Nop(),
		Requery:  func() (*query.Result, error) { return fs.result(), nil },
	}, fs.result())
	g.SetSize(100, 22) // 20 data rows visible
	return g, fs
}

func press(g *Grid, keys ...term.Key) {
	for _, k := range keys {
		g.HandleKey(k)
	}
}

func key(c term.KeyCode) term.Key          { return term.Key{Code: c} }
func ch(r rune) term.Key                   { return term.Key{Code: term.KeyRune, Rune: r} }
func shifted(c term.KeyCode) term.Key      { return term.Key{Code: c, Shift: true} }
func typeText(g *Grid, s string) {
	for _, r := range s {
		if r == ' ' {
			g.HandleKey(term.Key{Code: term.KeySpace, Rune: ' '})
			continue
		}
		g.HandleKey(ch(r))
	}
}

func TestNavigation_ScrollExactlyIntoView(t *testing.T) {
	g, _ := testGrid(t, 100)
	for i := 0; i < 25; i++ {
		press(g, key(term.KeyDown))
	}
	if g.selectedRow != 25 {
		t.Fatalf("selectedRow = %d, want 25", g.selectedRow)
	}
	if g.scrollOff != 6 {
		t.Fatalf("scrollOff = %d, want 6", g.scrollOff)
	}
}

func TestNavigation_ClampInvariantHolds(t *testing.T) {
	g, _ := testGrid(t, 37)
	ops := []term.Key{
		key(term.KeyUp), key(term.KeyDown), key(term.KeyPgUp),
		key(term.KeyPgDn), key(term.KeyHome), key(term.KeyEnd),
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		press(g, ops[rng.Intn(len(ops))])
		if g.selectedRow < 0 || g.selectedRow >= 37 {
			t.Fatalf("step %d: selectedRow %d out of range", i, g.selectedRow)
		}
		visible := g.visibleRows()
		if g.selectedRow < g.scrollOff || g.selectedRow > g.scrollOff+visible-1 {
			t.Fatalf("step %d: selection %d outside viewport [%d, %d]",
				i, g.selectedRow, g.scrollOff, g.scrollOff+visible-1)
		}
	}
}

func TestNavigation_EdgesAreNoOps(t *testing.T) {
	g, _ := testGrid(t, 3)
	press(g, key(term.KeyUp))
	if g.selectedRow != 0 {
		t.Fatalf("up at top moved to %d", g.selectedRow)
	}
	press(g, key(term.KeyEnd), key(term.KeyDown))
	if g.selectedRow != 2 {
		t.Fatalf("down at bottom moved to %d", g.selectedRow)
	}
}

func TestNavigation_CellModeArrows(t *testing.T) {
	g, _ := testGrid(t, 3)

	// Row mode: Left/Right do not change the column.
	press(g, key(term.KeyRight))
	if g.selectedCol != 0 {
		t.Fatalf("row mode right changed column to %d", g.selectedCol)
	}

	press(g, key(term.KeyTab))
	if g.nav != NavCell {
		t.Fatal("tab should switch to cell mode")
	}
	press(g, key(term.KeyRight), key(term.KeyRight))
	if g.selectedCol != 2 {
		t.Fatalf("selectedCol = %d, want 2", g.selectedCol)
	}
	for i := 0; i < 20; i++ {
		press(g, key(term.KeyRight))
	}
	if g.selectedCol != len(g.cols)-1 {
		t.Fatalf("selectedCol = %d, want clamped to %d", g.selectedCol, len(g.cols)-1)
	}
	press(g, key(term.KeyShiftTab))
	if g.nav != NavRow {
		t.Fatal("shift+tab should switch back to row mode")
	}
}

func TestEdit_NonEditableColumnSilentlyRefuses(t *testing.T) {
	g, _ := testGrid(t, 3)
	press(g, key(term.KeyTab)) // cell mode, column 0 = id (not editable)
	press(g, key(term.KeyEnter))
	if g.edit != nil {
		t.Fatal("editing must not start on a non-editable column")
	}
	if g.statusErr {
		t.Fatal("no error should be shown either")
	}
}

func TestEdit_TypeAndCommitSingleField(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyF2)) // row mode edits the first editable column (text)
	if g.edit == nil {
		t.Fatal("expected editing state")
	}
	press(g, key(term.KeyCtrlU))
	typeText(g, "repaint hull")
	press(g, key(term.KeyEnter))
	if g.edit != nil {
		t.Fatal("commit should leave editing state")
	}
	if fs.tasks["1"].Text != "repaint hull" {
		t.Fatalf("text = %q", fs.tasks["1"].Text)
	}
}

func TestEdit_TabStagesWithoutPersisting(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyF2))
	press(g, key(term.KeyCtrlU))
	typeText(g, "staged only")
	press(g, key(term.KeyTab)) // stage text, hop to project
	if len(fs.applies) != 0 {
		t.Fatalf("staging must not persist, got %v", fs.applies)
	}
	if got := g.cols[g.edit.col].Name; got != "project" {
		t.Fatalf("tab hopped to %q, want project", got)
	}
	// Shift+Tab returns to text with the staged value loaded.
	press(g, key(term.KeyShiftTab))
	if got := g.cols[g.edit.col].Name; got != "text" {
		t.Fatalf("shift+tab hopped to %q, want text", got)
	}
	if string(g.edit.buf) != "staged only" {
		t.Fatalf("buffer = %q, want the staged value", string(g.edit.buf))
	}
}

func TestEdit_CommitIsAllOrNothing(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyF2))
	press(g, key(term.KeyCtrlU))
	typeText(g, "new text")
	// Hop to priority: text -> project -> priority.
	press(g, key(term.KeyTab), key(term.KeyTab))
	if got := g.cols[g.edit.col].Name; got != "priority" {
		t.Fatalf("editing %q, want priority", got)
	}
	typeText(g, "9")
	press(g, key(term.KeyEnter))

	// Validation failed on priority: nothing persisted, edit reopened there.
	if len(fs.applies) != 0 {
		t.Fatalf("failed validation must persist nothing, got %v", fs.applies)
	}
	if g.edit == nil {
		t.Fatal("edit should stay open on the failing field")
	}
	if g.edit.errField != "priority" {
		t.Fatalf("errField = %q", g.edit.errField)
	}
	if fs.tasks["1"].Text != "task 1" {
		t.Fatalf("text leaked through: %q", fs.tasks["1"].Text)
	}

	// Fix the field; both staged edits now land.
	press(g, key(term.KeyCtrlU))
	typeText(g, "2")
	press(g, key(term.KeyEnter))
	if g.edit != nil {
		t.Fatal("commit should close the edit")
	}
	if fs.tasks["1"].Text != "new text" || fs.tasks["1"].Priority != "2" {
		t.Fatalf("task after commit: %+v", fs.tasks["1"])
	}
}

func TestEdit_EscapeDiscardsAllStaged(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyF2))
	press(g, key(term.KeyCtrlU))
	typeText(g, "doomed")
	press(g, key(term.KeyTab))
	press(g, key(term.KeyEscape))
	if g.edit != nil {
		t.Fatal("escape should leave editing")
	}
	if len(fs.applies) != 0 {
		t.Fatalf("escape persisted %v", fs.applies)
	}
	if fs.tasks["1"].Text != "task 1" {
		t.Fatalf("text = %q", fs.tasks["1"].Text)
	}
}

func TestEdit_ConflictReopensField(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyF2))
	press(g, key(term.KeyCtrlU))
	typeText(g, "mine")

	// The row changes underneath the staged edit.
	fs.tasks["1"].Text = "theirs"

	press(g, key(term.KeyEnter))
	if g.edit == nil || g.edit.errField != "text" {
		t.Fatalf("expected inline conflict on text, edit=%+v", g.edit)
	}
	if len(fs.applies) != 0 {
		t.Fatalf("conflict persisted %v", fs.applies)
	}
}

func TestSort_CycleNoneAscDesc(t *testing.T) {
	g, _ := testGrid(t, 5)
	press(g, key(term.KeyTab))                  // cell mode
	press(g, key(term.KeyRight), key(term.KeyRight), key(term.KeyRight)) // priority col
	if g.cols[g.selectedCol].Name != "priority" {
		t.Fatalf("focused column %q", g.cols[g.selectedCol].Name)
	}

	press(g, key(term.KeyF3))
	if g.sortDir != SortAsc {
		t.Fatalf("first F3 = %v, want asc", g.sortDir)
	}
	press(g, key(term.KeyF3))
	if g.sortDir != SortDesc {
		t.Fatalf("second F3 = %v, want desc", g.sortDir)
	}
	press(g, key(term.KeyF3))
	if g.sortDir != SortNone {
		t.Fatalf("third F3 = %v, want none", g.sortDir)
	}
	// Back to original (id) order.
	if k := g.rows[0].Entity.Key(); k != "1" {
		t.Fatalf("row 0 after reset = %s", k)
	}
}

func TestSort_ReordersRows(t *testing.T) {
	g, fs := testGrid(t, 3)
	fs.tasks["1"].Due = "2025-06-03"
	fs.tasks["2"].Due = "2025-06-01"
	fs.tasks["3"].Due = "2025-06-02"
	g.SetResult(fs.result())

	press(g, key(term.KeyTab))
	for g.cols[g.selectedCol].Name != "due" {
		press(g, key(term.KeyRight))
	}
	press(g, key(term.KeyF3))

	var order []string
	for _, r := range g.rows {
		order = append(order, r.Entity.Key())
	}
	want := []string{"2", "3", "1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("asc order = %v, want %v", order, want)
		}
	}
}

func TestMultiSelect_SpaceAndShiftRange(t *testing.T) {
	g, _ := testGrid(t, 10)
	press(g, key(term.KeySpace))
	if !g.selected["1"] || g.state != StateMultiSelect {
		t.Fatalf("space did not select row 1: %v", g.selected)
	}
	press(g, shifted(term.KeyDown), shifted(term.KeyDown))
	for _, k := range []string{"1", "2", "3"} {
		if !g.selected[k] {
			t.Fatalf("shift+down range missing %s: %v", k, g.selected)
		}
	}
	// Escape clears selection before quitting.
	quit := g.HandleKey(key(term.KeyEscape))
	if quit {
		t.Fatal("escape with a selection should not quit")
	}
	if len(g.selected) != 0 || g.state != StateBrowsing {
		t.Fatal("escape should clear the selection")
	}
}

func TestMultiSelect_CtrlAThenDelete(t *testing.T) {
	g, fs := testGrid(t, 4)
	press(g, key(term.KeyCtrlA))
	if len(g.selected) != 4 {
		t.Fatalf("ctrl+a selected %d rows", len(g.selected))
	}
	press(g, key(term.KeyDelete))
	if len(fs.deleted) != 1 || len(fs.deleted[0]) != 4 {
		t.Fatalf("deleted = %v", fs.deleted)
	}
	if len(g.rows) != 0 {
		t.Fatalf("grid still shows %d rows", len(g.rows))
	}
}

func TestDelete_CurrentRowWhenNothingSelected(t *testing.T) {
	g, fs := testGrid(t, 3)
	press(g, key(term.KeyDown), key(term.KeyDelete))
	if len(fs.deleted) != 1 || fs.deleted[0][0] != "2" {
		t.Fatalf("deleted = %v", fs.deleted)
	}
	if len(g.rows) != 2 {
		t.Fatalf("rows = %d", len(g.rows))
	}
}

func TestQuitKeys(t *testing.T) {
	g, _ := testGrid(t, 1)
	if !g.HandleKey(ch('q')) {
		t.Fatal("q should quit")
	}
	if !g.HandleKey(key(term.KeyCtrlC)) {
		t.Fatal("ctrl+c should quit")
	}
	if !g.HandleKey(key(term.KeyEscape)) {
		t.Fatal("escape with nothing pending should quit")
	}
}

func TestHelp_OverlayToggles(t *testing.T) {
	g, _ := testGrid(t, 1)
	press(g, ch('?'))
	if !g.showHelp {
		t.Fatal("? should open help")
	}
	quit := g.HandleKey(ch('q'))
	if quit {
		t.Fatal("key while help is open should only dismiss it")
	}
	if g.showHelp {
		t.Fatal("any key should close help")
	}
}
