package query

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taskdeck/internal/model"
	"taskdeck/internal/schema"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local) // a Sunday

type fakeProvider struct {
	tasks    []model.Task
	projects []model.Project
	logs     []model.TimeLog
	err      error
}

func (f fakeProvider) GetEntities(d model.Domain) ([]model.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Entity
	switch d {
	case model.DomainTask:
		for _, t := range f.tasks {
			out = append(out, t)
		}
	case model.DomainProject:
		for _, p := range f.projects {
			out = append(out, p)
		}
	case model.DomainTimeLog:
		for _, l := range f.logs {
			out = append(out, l)
		}
	}
	return out, nil
}

func testEvaluator(p DataProvider) *Evaluator {
	e := NewEvaluator(p, schema.NewRegistry(), zerolog.Nop())
	e.Now = func() time.Time { return evalNow }
	return e
}

func evalQuery(t *testing.T, p DataProvider, input string) *Result {
	t.Helper()
	spec := mustParse(t, input)
	res, err := testEvaluator(p).Evaluate(spec)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", input, err)
	}
	return res
}

func rowIDs(res *Result) []string {
	out := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		out = append(out, r.Entity.Key())
	}
	return out
}

func TestEvaluate_DueTodayAndPriorityBand(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Text: "due today p1", Priority: "1", Due: "2025-06-01"},
		{ID: 2, Text: "due tomorrow p1", Priority: "1", Due: "2025-06-02"},
	}}
	res := evalQuery(t, p, "task due:today p<=2")
	if got := rowIDs(res); len(got) != 1 || got[0] != "1" {
		t.Fatalf("rows = %v, want exactly task 1", got)
	}
}

func TestEvaluate_SortAndProjection(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Text: "c", Due: "2025-01-03"},
		{ID: 2, Text: "a", Due: "2025-01-01"},
		{ID: 3, Text: "b", Due: "2025-01-02"},
	}}
	res := evalQuery(t, p, "task cols:id,text sort:due+")
	if got := rowIDs(res); strings.Join(got, ",") != "2,3,1" {
		t.Fatalf("order = %v", got)
	}
	if strings.Join(res.Columns, ",") != "id,text" {
		t.Fatalf("columns = %v", res.Columns)
	}
}

func TestEvaluate_OverdueIsEvaluatedAtEvalTime(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Due: "2025-05-20"},
		{ID: 2, Due: "2025-06-01"},
		{ID: 3, Due: "2025-06-09"},
		{ID: 4}, // no due date: never overdue
	}}
	res := evalQuery(t, p, "task overdue")
	if got := rowIDs(res); strings.Join(got, ",") != "1" {
		t.Fatalf("overdue rows = %v", got)
	}
}

func TestEvaluate_UnresolvableDateFailsClosed(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Due: "2025-06-01"},
		{ID: 2, Due: "2025-06-02"},
	}}
	res := evalQuery(t, p, "task due:whenever")
	if len(res.Rows) != 0 {
		t.Fatalf("unresolvable date token must reject all rows, got %v", rowIDs(res))
	}
}

func TestEvaluate_TagsMembershipAndNumericExclusion(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Tags: []string{"home", "urgent"}, Priority: "2"},
		{ID: 2, Tags: []string{"work"}, Priority: "1"},
		{ID: 3, Tags: []string{"home"}}, // no priority: excluded by numeric compare
	}}
	res := evalQuery(t, p, "task #home p>=2")
	if got := rowIDs(res); strings.Join(got, ",") != "1" {
		t.Fatalf("rows = %v", got)
	}
}

func TestEvaluate_FreeTextANDAcrossTerms(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Text: "fix boiler", Project: "home"},
		{ID: 2, Text: "fix roof", Project: "cabin"},
		{ID: 3, Text: "boiler service", Project: "home", Description: "fix soon"},
	}}
	res := evalQuery(t, p, "task fix boiler")
	if got := rowIDs(res); strings.Join(got, ",") != "1,3" {
		t.Fatalf("rows = %v", got)
	}
}

// Property: for AND-combined filters, a row is in the result iff it passes
// every filter independently, compared against a naive reference filter.
func TestEvaluate_FilterANDSemanticsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"todo", "doing", "done"}
	var tasks []model.Task
	for i := 1; i <= 60; i++ {
		task := model.Task{ID: i, Text: fmt.Sprintf("task %d", i)}
		if rng.Intn(4) > 0 {
			task.Priority = fmt.Sprintf("%d", 1+rng.Intn(3))
		}
		if rng.Intn(3) > 0 {
			task.Due = evalNow.AddDate(0, 0, rng.Intn(20)-10).Format(model.DateOnly)
		}
		task.Status = statuses[rng.Intn(len(statuses))]
		tasks = append(tasks, task)
	}
	p := fakeProvider{tasks: tasks}

	filterPool := []string{"p<=2", "p>=2", "overdue", "due:today", "status=doing", "due", "priority"}
	for trial := 0; trial < 30; trial++ {
		f1 := filterPool[rng.Intn(len(filterPool))]
		f2 := filterPool[rng.Intn(len(filterPool))]

		combined := evalQuery(t, p, "task "+f1+" "+f2)
		only1 := evalQuery(t, p, "task "+f1)
		only2 := evalQuery(t, p, "task "+f2)

		in := func(res *Result, key string) bool {
			for _, id := range rowIDs(res) {
				if id == key {
					return true
				}
			}
			return false
		}
		for _, task := range tasks {
			key := task.Key()
			want := in(only1, key) && in(only2, key)
			if got := in(combined, key); got != want {
				t.Fatalf("trial %d (%s AND %s): task %s in combined=%v, want %v", trial, f1, f2, key, got, want)
			}
		}
	}
}

func TestEvaluate_SortStability(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Priority: "1", Text: "a"},
		{ID: 2, Priority: "1", Text: "b"},
		{ID: 3, Priority: "1", Text: "c"},
		{ID: 4, Priority: "2", Text: "d"},
	}}
	first := evalQuery(t, p, "task sort:priority+")
	second := evalQuery(t, p, "task sort:priority+")
	if strings.Join(rowIDs(first), ",") != strings.Join(rowIDs(second), ",") {
		t.Fatalf("sort not deterministic: %v vs %v", rowIDs(first), rowIDs(second))
	}
	// Ties preserve input order.
	if got := strings.Join(rowIDs(first), ","); got != "1,2,3,4" {
		t.Fatalf("tie order = %v", got)
	}
}

func TestEvaluate_ProjectionRoundTrip(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Text: "a", Project: "home"},
		{ID: 2, Text: "b", Project: "ops"},
	}}
	narrow := evalQuery(t, p, "task cols:id,text")
	wide := evalQuery(t, p, "task cols:id,text,project")
	back := evalQuery(t, p, "task cols:id,text")

	if strings.Join(narrow.Columns, ",") != strings.Join(back.Columns, ",") {
		t.Fatalf("columns changed: %v vs %v", narrow.Columns, back.Columns)
	}
	for i := range narrow.Rows {
		for _, col := range narrow.Columns {
			if narrow.ValueAt(i, col) != back.ValueAt(i, col) || narrow.ValueAt(i, col) != wide.ValueAt(i, col) {
				t.Fatalf("row %d col %s: projection round-trip mismatch", i, col)
			}
		}
	}
}

func TestEvaluate_GroupingPrependsGroupColumn(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Text: "x", Status: "todo"},
		{ID: 2, Text: "y", Status: "doing"},
		{ID: 3, Text: "z", Status: "doing"},
	}}
	res := evalQuery(t, p, "task group:status")
	if len(res.Columns) == 0 || res.Columns[0] != "group" {
		t.Fatalf("columns = %v, want group first", res.Columns)
	}
	// Rows ordered by group value: doing, doing, todo.
	if got := strings.Join(rowIDs(res), ","); got != "2,3,1" {
		t.Fatalf("grouped order = %v", got)
	}
	if v, _ := res.Rows[0].Field("group"); v != "doing" {
		t.Fatalf("group value = %q", v)
	}
}

func TestEvaluate_UnknownColumnIsWarningNotError(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{{ID: 1, Text: "a"}}}
	res := evalQuery(t, p, "task cols:id,flux,text")
	if strings.Join(res.Columns, ",") != "id,text" {
		t.Fatalf("columns = %v", res.Columns)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "flux") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestEvaluate_UnknownMetricWarnsAndSkips(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{{ID: 1, Text: "a"}}}
	res := evalQuery(t, p, "task metrics:velocity")
	if len(res.Warnings) == 0 {
		t.Fatal("expected unknown-metric warning")
	}
	if _, ok := res.Rows[0].Computed["velocity"]; ok {
		t.Fatal("unknown metric must not be attached")
	}
}

func TestEvaluate_TaskTimeMetrics(t *testing.T) {
	start := evalNow.Add(-2 * time.Hour)
	end := evalNow.Add(-1 * time.Hour)
	p := fakeProvider{
		tasks: []model.Task{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}},
		logs:  []model.TimeLog{{ID: 1, TaskID: 1, Start: start, End: &end}},
	}
	res := evalQuery(t, p, "task metrics:time_total")
	if v := res.Rows[0].Computed["time_total"]; v != "1h00m" {
		t.Fatalf("time_total = %q", v)
	}
	if v := res.Rows[1].Computed["time_total"]; v != "0m" {
		t.Fatalf("time_total for untracked task = %q", v)
	}
	// Metrics show up as default-projection columns.
	if !strings.Contains(strings.Join(res.Columns, ","), "time_total") {
		t.Fatalf("columns = %v", res.Columns)
	}
}

func TestEvaluate_TimeLogRelations(t *testing.T) {
	end := evalNow.Add(-time.Hour)
	p := fakeProvider{
		tasks:    []model.Task{{ID: 7, Text: "deploy", Project: "ops"}},
		projects: []model.Project{{Name: "ops", Status: "active"}},
		logs:     []model.TimeLog{{ID: 1, TaskID: 7, Start: evalNow.Add(-2 * time.Hour), End: &end}},
	}
	res := evalQuery(t, p, "timelog with:task with:project")
	row := res.Rows[0]
	if v := row.Computed["task_text"]; v != "deploy" {
		t.Fatalf("task_text = %q", v)
	}
	if v := row.Computed["project_name"]; v != "ops" {
		t.Fatalf("project_name = %q", v)
	}
	if v := row.Computed["project_status"]; v != "active" {
		t.Fatalf("project_status = %q", v)
	}
}

func TestEvaluate_UnknownRelationIsNoOp(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{{ID: 1, Text: "a"}}}
	res := evalQuery(t, p, "task with:weather")
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %v", rowIDs(res))
	}
}

func TestEvaluate_LimitTruncates(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{{ID: 1}, {ID: 2}, {ID: 3}}}
	res := evalQuery(t, p, "task limit:2")
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %v", rowIDs(res))
	}
	// ActualRowCount reports the pre-limit match count.
	if res.ActualRowCount != 3 {
		t.Fatalf("ActualRowCount = %d", res.ActualRowCount)
	}
}

func TestEvaluate_ProviderFailureAborts(t *testing.T) {
	spec := mustParse(t, "task")
	_, err := testEvaluator(fakeProvider{err: errors.New("disk gone")}).Evaluate(spec)
	var ee *EvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EvaluationError, got %v", err)
	}
}

func TestEvaluate_InvalidSpecRefused(t *testing.T) {
	spec, err := Parse(testParseContext(), "task flavor:mint")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := testEvaluator(fakeProvider{}).Evaluate(spec); err == nil {
		t.Fatal("specs with parse errors must not evaluate")
	}
}

func TestEvaluate_DefaultSortForDueFilter(t *testing.T) {
	p := fakeProvider{tasks: []model.Task{
		{ID: 1, Due: "2025-06-05"},
		{ID: 2, Due: "2025-06-02"},
		{ID: 3, Due: "2025-06-04"},
	}}
	res := evalQuery(t, p, "task due<=+30")
	if got := strings.Join(rowIDs(res), ","); got != "2,3,1" {
		t.Fatalf("default due sort = %v", got)
	}
}

func TestSpec_WantsKanban(t *testing.T) {
	spec := mustParse(t, "task group:status")
	if !spec.WantsKanban() {
		t.Fatal("group:status should default to kanban")
	}
	spec = mustParse(t, "task group:project")
	if spec.WantsKanban() {
		t.Fatal("group:project should stay tabular")
	}
	spec = mustParse(t, "task group:project view:kanban")
	if !spec.WantsKanban() {
		t.Fatal("view:kanban should force lanes")
	}
}
