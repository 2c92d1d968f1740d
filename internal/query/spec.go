// Package query implements the console's query language: a token-based
// parser producing a structured Spec, and an evaluator that runs a Spec
// against a dataset snapshot.
package query

import (
	"fmt"
	"strings"

	"taskdeck/internal/model"
)

// Operator is a single filter-clause operator.
type Operator string

const (
	OpEq       Operator = "="
	OpColon    Operator = ":"
	OpLike     Operator = "~"
	OpLT       Operator = "<"
	OpGT       Operator = ">"
	OpLE       Operator = "<="
	OpGE       Operator = ">="
	OpExists   Operator = "exists"
	OpContains Operator = "contains"
)

// FilterClause constrains one field. Multiple clauses on the same field
// AND-combine.
type FilterClause struct {
	Op    Operator
	Value string
}

type SortKey struct {
	Field string
	Desc  bool
}

// Directives control presentation rather than row filtering.
type Directives struct {
	Columns   []string
	Sort      []SortKey
	Limit     int // 0 = unlimited
	GroupBy   string
	Metrics   []string
	Relations []string
	View      string // "", "kanban"
}

// ParseError is one accumulated query-parse problem.
type ParseError struct {
	Token  string
	Reason string
}

func (e ParseError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%q: %s", e.Token, e.Reason)
}

// Spec is the parsed form of one query. It is pure input to the evaluator:
// never mutated once evaluation begins.
type Spec struct {
	Domain     model.Domain
	Filters    map[string][]FilterClause
	Directives Directives
	FreeText   []string
	Errors     []ParseError
}

// IsValid gates evaluation: a spec with any accumulated errors must not run.
func (s *Spec) IsValid() bool { return len(s.Errors) == 0 }

func (s *Spec) addFilter(field string, c FilterClause) {
	if s.Filters == nil {
		s.Filters = map[string][]FilterClause{}
	}
	s.Filters[field] = append(s.Filters[field], c)
}

func (s *Spec) addError(token, reason string) {
	s.Errors = append(s.Errors, ParseError{Token: token, Reason: reason})
}

// HasFilter reports whether any clause constrains the field.
func (s *Spec) HasFilter(field string) bool {
	return len(s.Filters[field]) > 0
}

// ErrorSummary joins accumulated parse errors for user display.
func (s *Spec) ErrorSummary() string {
	if len(s.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// NormalizeDomain maps the accepted domain spellings onto canonical domains.
func NormalizeDomain(token string) (model.Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "task", "tasks":
		return model.DomainTask, true
	case "project", "projects":
		return model.DomainProject, true
	case "timelog", "timelogs", "time":
		return model.DomainTimeLog, true
	}
	return "", false
}
