package grid

import (
	"testing"

	"taskdeck/internal/term"
)

func kanbanGrid(t *testing.T) (*Grid, *fakeStore) {
	t.Helper()
	g, fs := testGrid(t, 4) // statuses: 1 doing, 2 open, 3 done, 4 open
	g.EnterKanban()
	return g, fs
}

func laneValues(g *Grid) []string {
	var out []string
	for _, l := range g.kanban.lanes {
		out = append(out, l.Value)
	}
	return out
}

func TestKanban_LanesPartitionByStatus(t *testing.T) {
	g, _ := kanbanGrid(t)
	want := []string{"doing", "open", "done"} // first-appearance order
	got := laneValues(g)
	if len(got) != len(want) {
		t.Fatalf("lanes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lanes = %v, want %v", got, want)
		}
	}
	if n := len(g.kanban.lanes[1].Cards); n != 2 {
		t.Fatalf("open lane has %d cards, want 2", n)
	}
}

func TestKanban_EmptyGroupValueGetsLeftmostLane(t *testing.T) {
	g, fs := testGrid(t, 3)
	fs.tasks["2"].Status = ""
	g.SetResult(fs.result())
	g.EnterKanban()
	if got := laneValues(g)[0]; got != "(none)" {
		t.Fatalf("leftmost lane = %q, want (none)", got)
	}
}

func TestKanban_MoveCardCommitsThroughStore(t *testing.T) {
	g, fs := kanbanGrid(t)
	// Focus: lane 0 (doing), card 0 = task 1.
	press(g, key(term.KeySpace))
	if g.kanban.picked != "1" {
		t.Fatalf("picked = %q", g.kanban.picked)
	}
	press(g, key(term.KeyRight)) // to open lane
	press(g, key(term.KeyEnter))

	if len(fs.moves) != 1 || fs.moves[0] != "1.status=open" {
		t.Fatalf("moves = %v", fs.moves)
	}
	if g.kanban.picked != "" {
		t.Fatal("drop should clear the picked card")
	}
	// Focus follows the moved card into its new lane.
	if got := g.kanban.selectedKey(); got != "1" {
		t.Fatalf("focused card = %s, want 1", got)
	}
}

func TestKanban_EscapeCancelsMove(t *testing.T) {
	g, fs := kanbanGrid(t)
	press(g, key(term.KeySpace), key(term.KeyRight))
	quit := g.HandleKey(key(term.KeyEscape))
	if quit {
		t.Fatal("escape during a move should not quit")
	}
	if g.kanban.picked != "" {
		t.Fatal("escape should cancel the pick")
	}
	if len(fs.moves) != 0 {
		t.Fatalf("cancelled move still wrote %v", fs.moves)
	}
}

func TestKanban_DropOnSameLaneIsNoOp(t *testing.T) {
	g, fs := kanbanGrid(t)
	press(g, key(term.KeySpace), key(term.KeySpace))
	if len(fs.moves) != 0 {
		t.Fatalf("same-lane drop wrote %v", fs.moves)
	}
}

func TestKanban_EmptyBoardKeysAreSafe(t *testing.T) {
	g, _ := testGrid(t, 0)
	g.EnterKanban()
	press(g,
		key(term.KeyEnd), key(term.KeyHome),
		key(term.KeyUp), key(term.KeyDown),
		key(term.KeyLeft), key(term.KeyRight),
		key(term.KeySpace), key(term.KeyEnter),
	)
	if g.kanban.laneIdx != 0 || g.kanban.cardIdx != 0 {
		t.Fatalf("focus = (%d,%d), want (0,0)", g.kanban.laneIdx, g.kanban.cardIdx)
	}
	if g.kanban.picked != "" {
		t.Fatalf("picked = %q on an empty board", g.kanban.picked)
	}
}

func TestKanban_MoveLandsAtChosenPosition(t *testing.T) {
	g, fs := kanbanGrid(t)
	// Pick task 3 (done lane), target the open lane [2 4], choose the top.
	press(g, key(term.KeyRight), key(term.KeyRight)) // done lane
	press(g, key(term.KeySpace))
	if g.kanban.picked != "3" {
		t.Fatalf("picked = %q, want 3", g.kanban.picked)
	}
	press(g, key(term.KeyLeft)) // open lane
	press(g, key(term.KeyUp))   // position 0
	press(g, key(term.KeyEnter))

	if len(fs.moves) != 1 || fs.moves[0] != "3.status=open" {
		t.Fatalf("moves = %v", fs.moves)
	}
	lane := g.kanban.lanes[g.kanban.laneIdx]
	if lane.Value != "open" || len(lane.Cards) != 3 {
		t.Fatalf("target lane = %q with %d cards", lane.Value, len(lane.Cards))
	}
	if got := lane.Cards[0].Entity.Key(); got != "3" {
		t.Fatalf("lane head = task %s, want task 3", got)
	}
	if got := g.kanban.selectedKey(); got != "3" {
		t.Fatalf("focused card = %s, want 3", got)
	}
}

func TestKanban_NavigationClamps(t *testing.T) {
	g, _ := kanbanGrid(t)
	for i := 0; i < 10; i++ {
		press(g, key(term.KeyRight))
	}
	if g.kanban.laneIdx != len(g.kanban.lanes)-1 {
		t.Fatalf("laneIdx = %d", g.kanban.laneIdx)
	}
	for i := 0; i < 10; i++ {
		press(g, key(term.KeyDown))
	}
	lane := g.kanban.lanes[g.kanban.laneIdx]
	if g.kanban.cardIdx != len(lane.Cards)-1 {
		t.Fatalf("cardIdx = %d", g.kanban.cardIdx)
	}
}

func TestKanban_QuitKeys(t *testing.T) {
	g, _ := kanbanGrid(t)
	if !g.HandleKey(ch('q')) {
		t.Fatal("q should quit the board")
	}
	if !g.HandleKey(key(term.KeyEscape)) {
		t.Fatal("escape with no move in flight should quit")
	}
}
