package grid

import (
	"testing"

	"taskdeck/internal/term"
)

func TestFilter_SubstringNarrowsLive(t *testing.T) {
	g, fs := testGrid(t, 3)
	fs.tasks["1"].Text = "alpha"
	fs.tasks["2"].Text = "beta"
	fs.tasks["3"].Text = "alphabet"
	g.SetResult(fs.result())

	press(g, ch('/'))
	if g.filter == nil {
		t.Fatal("/ should open the filter prompt")
	}
	typeText(g, "alp")
	if len(g.rows) != 2 {
		t.Fatalf("live filter shows %d rows, want 2", len(g.rows))
	}
	// Case-insensitive.
	press(g, key(term.KeyCtrlU))
	typeText(g, "ALPHA")
	if len(g.rows) != 2 {
		t.Fatalf("case-insensitive match shows %d rows", len(g.rows))
	}

	// Enter keeps the narrowing with the prompt closed.
	press(g, key(term.KeyEnter))
	if g.filter != nil {
		t.Fatal("enter should close the prompt")
	}
	if len(g.rows) != 2 {
		t.Fatalf("narrowing lost on enter: %d rows", len(g.rows))
	}
}

func TestFilter_RegexForms(t *testing.T) {
	g, fs := testGrid(t, 3)
	fs.tasks["1"].Text = "alpha"
	fs.tasks["2"].Text = "beta"
	fs.tasks["3"].Text = "alphabet"
	g.SetResult(fs.result())

	press(g, key(term.KeyCtrlF))
	typeText(g, "re:^b")
	if len(g.rows) != 1 {
		t.Fatalf("re: filter shows %d rows, want 1", len(g.rows))
	}
	v, _ := g.rows[0].Field("text")
	if v != "beta" {
		t.Fatalf("re: matched %q", v)
	}

	press(g, key(term.KeyCtrlU))
	typeText(g, "/bet$/")
	var texts []string
	for _, r := range g.rows {
		v, _ := r.Field("text")
		texts = append(texts, v)
	}
	if len(g.rows) != 1 || texts[0] != "alphabet" {
		t.Fatalf("/../ filter matched %v", texts)
	}
}

func TestFilter_InvalidRegexMatchesNothing(t *testing.T) {
	g, _ := testGrid(t, 3)
	press(g, ch('/'))
	typeText(g, "re:[")
	if len(g.rows) != 0 {
		t.Fatalf("broken regex shows %d rows, want 0", len(g.rows))
	}
}

func TestFilter_EscapeClearsNarrowing(t *testing.T) {
	g, _ := testGrid(t, 5)
	press(g, ch('/'))
	typeText(g, "zzz-no-match")
	if len(g.rows) != 0 {
		t.Fatalf("rows = %d", len(g.rows))
	}
	press(g, key(term.KeyEscape))
	if g.filter != nil {
		t.Fatal("escape should close the prompt")
	}
	if len(g.rows) != 5 {
		t.Fatalf("escape should restore all rows, got %d", len(g.rows))
	}
}

func TestFilter_KeepsSelectionValid(t *testing.T) {
	g, _ := testGrid(t, 30)
	press(g, key(term.KeyEnd))
	press(g, ch('/'))
	typeText(g, "task 3") // matches "task 3" and "task 30"
	if len(g.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(g.rows))
	}
	if g.selectedRow >= len(g.rows) {
		t.Fatalf("selectedRow %d out of range after narrowing", g.selectedRow)
	}
}
