package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taskdeck/internal/model"
	"taskdeck/internal/schema"
)

// DataProvider resolves a dataset snapshot per domain. The returned slice is
// treated as immutable for the duration of one evaluation.
type DataProvider interface {
	GetEntities(domain model.Domain) ([]model.Entity, error)
}

// Strategy names how the evaluator resolved rows. Everything is a scan
// today; the enum leaves room for indexed backends.
type Strategy string

const (
	StrategyScan    Strategy = "scan"
	StrategyIndexed Strategy = "indexed"
)

// Row is one result row: the source entity plus any computed fields the
// relation and metric stages attached.
type Row struct {
	Entity   model.Entity
	Computed map[string]string
}

// Field reads computed fields first, then falls back to the entity.
func (r Row) Field(name string) (string, bool) {
	if v, ok := r.Computed[name]; ok {
		return v, true
	}
	return r.Entity.Field(name)
}

func (r *Row) attach(name, value string) {
	if r.Computed == nil {
		r.Computed = map[string]string{}
	}
	r.Computed[name] = value
}

// Result is the immutable outcome of one evaluation.
type Result struct {
	Rows    []Row
	Columns []string
	GroupBy string

	ActualRowCount    int
	EstimatedRowCount int
	Strategy          Strategy

	Warnings []string
}

// ValueAt returns the raw (unformatted) value for a projected cell.
func (res *Result) ValueAt(row int, column string) string {
	if row < 0 || row >= len(res.Rows) {
		return ""
	}
	v, _ := res.Rows[row].Field(column)
	return v
}

// EvaluationError is a whole-query failure (dataset resolution, invalid
// spec). Row-level problems never produce one.
type EvaluationError struct {
	Domain model.Domain
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s query: %v", e.Domain, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// freeTextFields is the fixed free-text search contract. Deliberately not
// derived from the schema.
var freeTextFields = []string{"text", "project", "description", "name"}

// defaultColumns per domain, used when the query has no cols: directive.
var defaultColumns = map[model.Domain][]string{
	model.DomainTask:    {"id", "text", "project", "priority", "due", "tags"},
	model.DomainProject: {"name", "status", "description"},
	model.DomainTimeLog: {"id", "task", "project", "note", "duration"},
}

// Evaluator runs validated Specs against the provider's snapshots.
type Evaluator struct {
	provider DataProvider
	registry *schema.Registry
	log      zerolog.Logger

	// Now anchors all relative date filters; injectable for tests.
	Now func() time.Time

	relations map[model.Domain]map[string]relationFunc
	metrics   map[model.Domain]map[string]metricFunc
}

func NewEvaluator(provider DataProvider, registry *schema.Registry, log zerolog.Logger) *Evaluator {
	e := &Evaluator{
		provider: provider,
		registry: registry,
		log:      log,
		Now:      time.Now,
	}
	e.registerRelations()
	e.registerMetrics()
	return e
}

// Evaluate executes the fixed stage pipeline. Stages operate on the rows
// slice built here; the provider's snapshot is never mutated.
func (e *Evaluator) Evaluate(spec *Spec) (*Result, error) {
	if spec == nil {
		return nil, &EvaluationError{Err: fmt.Errorf("nil spec")}
	}
	if !spec.IsValid() {
		return nil, &EvaluationError{Domain: spec.Domain, Err: fmt.Errorf("spec has parse errors: %s", spec.ErrorSummary())}
	}

	entities, err := e.provider.GetEntities(spec.Domain)
	if err != nil {
		return nil, &EvaluationError{Domain: spec.Domain, Err: err}
	}

	res := &Result{
		Strategy:          StrategyScan,
		EstimatedRowCount: len(entities),
		GroupBy:           spec.Directives.GroupBy,
	}
	now := e.Now()

	rows := make([]Row, 0, len(entities))
	for _, ent := range entities {
		row := Row{Entity: ent}
		if e.passesFilters(row, spec, now) && e.passesFreeText(row, spec) {
			rows = append(rows, row)
		}
	}

	e.applyRelations(spec, rows)
	e.applyMetrics(spec, rows, res)

	rows = e.sortRows(spec, rows)
	rows = e.groupRows(spec, rows)
	res.ActualRowCount = len(rows)

	e.projectColumns(spec, rows, res)

	if limit := spec.Directives.Limit; limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	res.Rows = rows
	return res, nil
}

// --- stage 2: filters ---

func (e *Evaluator) passesFilters(row Row, spec *Spec, now time.Time) bool {
	for field, clauses := range spec.Filters {
		for _, c := range clauses {
			if !e.matchClause(row, spec.Domain, field, c, now) {
				return false
			}
		}
	}
	return true
}

func (e *Evaluator) matchClause(row Row, domain model.Domain, field string, c FilterClause, now time.Time) bool {
	value, ok := row.Field(field)
	if !ok {
		return false
	}

	if c.Op == OpExists {
		return strings.TrimSpace(value) != ""
	}

	if field == "due" {
		return matchDueClause(value, c, now)
	}
	if c.Op == OpContains {
		return containsListItem(value, c.Value)
	}

	switch c.Op {
	case OpEq, OpColon:
		return strings.EqualFold(value, c.Value)
	case OpLike:
		return strings.Contains(strings.ToLower(value), strings.ToLower(c.Value))
	case OpLT, OpGT, OpLE, OpGE:
		return matchNumeric(value, c)
	}
	return false
}

// matchDueClause evaluates date filters against "now" at evaluation time
// using date-only comparison. Unresolvable date tokens reject all rows
// (fail-closed).
func matchDueClause(value string, c FilterClause, now time.Time) bool {
	today := schema.Midnight(now)

	due, err := time.ParseInLocation(model.DateOnly, value, now.Location())
	if err != nil {
		return false
	}

	if strings.EqualFold(c.Value, "overdue") {
		return due.Before(today)
	}

	target, ok := schema.ResolveDateToken(c.Value, now)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq, OpColon:
		return due.Equal(target)
	case OpLT:
		return due.Before(target)
	case OpGT:
		return due.After(target)
	case OpLE:
		return !due.After(target)
	case OpGE:
		return !due.Before(target)
	}
	return false
}

// matchNumeric compares both sides as numbers. A non-numeric side excludes
// the row rather than erroring.
func matchNumeric(value string, c FilterClause) bool {
	left, err1 := strconv.ParseFloat(strings.TrimSpace(value), 64)
	right, err2 := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
	if err1 != nil || err2 != nil {
		return false
	}
	switch c.Op {
	case OpLT:
		return left < right
	case OpGT:
		return left > right
	case OpLE:
		return left <= right
	case OpGE:
		return left >= right
	}
	return false
}

func containsListItem(list, item string) bool {
	for _, have := range model.SplitTags(list) {
		if strings.EqualFold(have, item) {
			return true
		}
	}
	return false
}

// --- stage 3: free-text search ---

func (e *Evaluator) passesFreeText(row Row, spec *Spec) bool {
	if len(spec.FreeText) == 0 {
		return true
	}
	var sb strings.Builder
	for _, f := range freeTextFields {
		if v, ok := row.Field(f); ok && v != "" {
			sb.WriteString(strings.ToLower(v))
			sb.WriteByte(' ')
		}
	}
	haystack := sb.String()
	for _, term := range spec.FreeText {
		if !strings.Contains(haystack, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// --- stage 6: sort ---

// sortRows applies the explicit sort, else the smart defaults: group field
// pre-sort, then due ascending when a due filter is present, then priority
// ascending when a priority filter is present.
func (e *Evaluator) sortRows(spec *Spec, rows []Row) []Row {
	keys := spec.Directives.Sort
	if len(keys) == 0 {
		switch {
		case spec.Directives.GroupBy != "":
			keys = []SortKey{{Field: spec.Directives.GroupBy}}
		case spec.HasFilter("due"):
			keys = []SortKey{{Field: "due"}}
		case spec.HasFilter("priority"):
			keys = []SortKey{{Field: "priority"}}
		default:
			return rows
		}
	}
	stableSortRows(rows, keys)
	return rows
}

// SortStable orders rows by the given keys in place, preserving the prior
// order of ties. The grid uses it to re-sort without a full re-evaluation.
func SortStable(rows []Row, keys []SortKey) {
	stableSortRows(rows, keys)
}

func stableSortRows(rows []Row, keys []SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, _ := rows[i].Field(k.Field)
			b, _ := rows[j].Field(k.Field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		// Equal on all keys: stable sort preserves the pre-sort order.
		return false
	})
}

// compareValues orders numerically when both sides parse as numbers, else
// lexicographically (case-insensitive). Empty values sort last so "no due
// date" rows don't crowd the top of due-sorted views.
func compareValues(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	al, bl := strings.ToLower(a), strings.ToLower(b)
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	default:
		return 0
	}
}

// --- stage 7: group ---

// groupRows attaches the synthetic "group" column and orders rows by group
// value (stable, so the stage-6 order survives within each group).
func (e *Evaluator) groupRows(spec *Spec, rows []Row) []Row {
	groupBy := spec.Directives.GroupBy
	if groupBy == "" {
		return rows
	}
	for i := range rows {
		v, _ := rows[i].Field(groupBy)
		if v == "" {
			v = "(none)"
		}
		rows[i].attach("group", v)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a := rows[i].Computed["group"]
		b := rows[j].Computed["group"]
		return compareValues(a, b) < 0
	})
	return rows
}

// --- stage 8: column projection ---

func (e *Evaluator) projectColumns(spec *Spec, rows []Row, res *Result) {
	requested := spec.Directives.Columns
	explicit := len(requested) > 0
	if !explicit {
		requested = append([]string(nil), defaultColumns[spec.Domain]...)
		// Metrics become visible columns in the default projection.
		requested = append(requested, spec.Directives.Metrics...)
	}

	cols := make([]string, 0, len(requested)+1)
	if spec.Directives.GroupBy != "" {
		cols = append(cols, "group")
	}
	for _, c := range requested {
		if c == "group" && spec.Directives.GroupBy != "" {
			continue
		}
		if !e.knownColumn(spec.Domain, c, rows) {
			// Unknown column is a caller-visible warning, not an error.
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown column %q", c))
			e.log.Warn().Str("column", c).Str("domain", string(spec.Domain)).Msg("query: unknown column omitted")
			continue
		}
		cols = append(cols, c)
	}
	res.Columns = cols
}

func (e *Evaluator) knownColumn(domain model.Domain, name string, rows []Row) bool {
	if e.registry.GetSchema(domain, name) != nil {
		return true
	}
	// Computed columns (metrics/relations) are known when attached.
	for i := range rows {
		if _, ok := rows[i].Computed[name]; ok {
			return true
		}
	}
	return false
}

// WantsKanban reports whether the query asked for a lane layout, either
// explicitly (view:kanban) or by grouping on status.
func (s *Spec) WantsKanban() bool {
	if s.Directives.View == "kanban" {
		return s.Directives.GroupBy != "" || s.Domain == model.DomainTask
	}
	return s.Directives.View == "" && s.Directives.GroupBy == "status"
}
