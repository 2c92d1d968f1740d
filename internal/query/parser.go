package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"taskdeck/internal/model"
	"taskdeck/internal/schema"
)

// ParseContext carries the ambient knowledge the parser needs: the allowed
// field list per domain and the known project names (for greedy multi-word
// @project matching). It is built by the caller, not read from globals.
type ParseContext struct {
	Fields       map[model.Domain][]string
	ProjectNames []string
}

// NewParseContext derives a parse context from the schema registry plus the
// current project list.
func NewParseContext(reg *schema.Registry, projectNames []string) ParseContext {
	return ParseContext{
		Fields: map[model.Domain][]string{
			model.DomainTask:    reg.FieldNames(model.DomainTask),
			model.DomainProject: reg.FieldNames(model.DomainProject),
			model.DomainTimeLog: reg.FieldNames(model.DomainTimeLog),
		},
		ProjectNames: projectNames,
	}
}

func (c ParseContext) knownField(d model.Domain, name string) bool {
	for _, f := range c.Fields[d] {
		if f == name {
			return true
		}
	}
	return false
}

// hasProjectPrefix reports whether any known project name starts with s,
// case-insensitive.
func (c ParseContext) hasProjectPrefix(s string) bool {
	s = strings.ToLower(s)
	for _, name := range c.ProjectNames {
		if strings.HasPrefix(strings.ToLower(name), s) {
			return true
		}
	}
	return false
}

var (
	rePriorityExact = regexp.MustCompile(`^[pP]([0-9])$`)
	rePriorityCmp   = regexp.MustCompile(`^[pP](<=|>=|<|>)([0-9])$`)
	rePriorityRange = regexp.MustCompile(`^[pP]([0-9])\.\.([0-9])$`)
)

// operator spellings tried longest-first so "<=" is not read as "<".
var operatorSpellings = []string{"<=", ">=", ":", "=", "~", "<", ">"}

// Parse converts a query line ("task @home due:+7 sort:due+ cols:id,text")
// into a Spec. The first token names the domain; an unrecognized domain is a
// hard failure (no spec). All other problems accumulate on Spec.Errors and
// the caller must check IsValid before evaluating.
func Parse(ctx ParseContext, input string) (*Spec, error) {
	tokens := splitQueryWords(input)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty query")
	}
	domain, ok := NormalizeDomain(tokens[0])
	if !ok {
		return nil, fmt.Errorf("unknown domain %q (expected task, project or timelog)", tokens[0])
	}

	spec := &Spec{Domain: domain, Filters: map[string][]FilterClause{}}
	p := &parser{ctx: ctx, spec: spec, tokens: tokens[1:]}
	p.run()
	return spec, nil
}

type parser struct {
	ctx    ParseContext
	spec   *Spec
	tokens []string
	pos    int

	// after "--" every remaining token is a free-text term
	freeTextOnly bool
}

func (p *parser) run() {
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		p.classify(tok)
	}
}

// classify handles one token in the fixed priority order. Order matters:
// the generic field<op>value rule would otherwise swallow directives.
func (p *parser) classify(tok string) {
	if p.freeTextOnly {
		p.spec.FreeText = append(p.spec.FreeText, tok)
		return
	}
	if tok == "--" {
		p.freeTextOnly = true
		return
	}

	switch {
	case strings.HasPrefix(tok, "@"):
		p.projectFilter(tok)
	case strings.HasPrefix(tok, "#"):
		p.tagFilter(tok)
	case p.priorityFilter(tok):
	case p.bareDateKeyword(tok):
	case p.directive(tok):
	case p.fieldFilter(tok):
	case p.existsFilter(tok):
	default:
		p.spec.FreeText = append(p.spec.FreeText, tok)
	}
}

// projectFieldName is where @name filters land per domain.
func (p *parser) projectFieldName() string {
	if p.spec.Domain == model.DomainProject {
		return "name"
	}
	return "project"
}

func (p *parser) projectFilter(tok string) {
	value := strings.TrimPrefix(tok, "@")
	if value == "" {
		p.spec.addError(tok, "missing project name after @")
		return
	}
	// Greedy multi-word matching: keep consuming plain tokens while the
	// extended value still prefixes a known project name. Stops at the next
	// prefixed token.
	for p.pos < len(p.tokens) {
		next := p.tokens[p.pos]
		if !p.isPlainWord(next) {
			break
		}
		extended := value + " " + next
		if !p.ctx.hasProjectPrefix(extended) {
			break
		}
		value = extended
		p.pos++
	}
	p.spec.addFilter(p.projectFieldName(), FilterClause{Op: OpEq, Value: value})
}

// isPlainWord reports whether the token would classify as free text: no
// filter/directive prefix and no operator. Only such tokens may extend a
// multi-word project name.
func (p *parser) isPlainWord(tok string) bool {
	if tok == "--" || strings.HasPrefix(tok, "@") || strings.HasPrefix(tok, "#") {
		return false
	}
	if rePriorityExact.MatchString(tok) || rePriorityCmp.MatchString(tok) || rePriorityRange.MatchString(tok) {
		return false
	}
	for _, op := range operatorSpellings {
		if strings.Contains(tok, op) {
			return false
		}
	}
	return true
}

func (p *parser) tagFilter(tok string) {
	value := strings.TrimPrefix(tok, "#")
	if value == "" {
		p.spec.addError(tok, "missing tag after #")
		return
	}
	p.spec.addFilter("tags", FilterClause{Op: OpContains, Value: value})
}

func (p *parser) priorityFilter(tok string) bool {
	if m := rePriorityExact.FindStringSubmatch(tok); m != nil {
		if !p.checkPriorityBand(tok, m[1]) {
			return true
		}
		p.spec.addFilter("priority", FilterClause{Op: OpEq, Value: m[1]})
		return true
	}
	if m := rePriorityCmp.FindStringSubmatch(tok); m != nil {
		p.spec.addFilter("priority", FilterClause{Op: Operator(m[1]), Value: m[2]})
		return true
	}
	if m := rePriorityRange.FindStringSubmatch(tok); m != nil {
		if !p.checkPriorityBand(tok, m[1]) || !p.checkPriorityBand(tok, m[2]) {
			return true
		}
		// pN..M decomposes into >= N and <= M.
		p.spec.addFilter("priority", FilterClause{Op: OpGE, Value: m[1]})
		p.spec.addFilter("priority", FilterClause{Op: OpLE, Value: m[2]})
		return true
	}
	return false
}

func (p *parser) checkPriorityBand(tok, digit string) bool {
	n, _ := strconv.Atoi(digit)
	if n < schema.PriorityMin || n > schema.PriorityMax {
		p.spec.addError(tok, fmt.Sprintf("priority %d out of range %d..%d", n, schema.PriorityMin, schema.PriorityMax))
		return false
	}
	return true
}

// bareDateKeyword turns bare overdue/today/tomorrow into due filters.
// Task domain only; other domains have no due field.
func (p *parser) bareDateKeyword(tok string) bool {
	if p.spec.Domain != model.DomainTask {
		return false
	}
	switch strings.ToLower(tok) {
	case "overdue", "today", "tomorrow":
		p.spec.addFilter("due", FilterClause{Op: OpColon, Value: strings.ToLower(tok)})
		return true
	}
	return false
}

func (p *parser) directive(tok string) bool {
	lower := strings.ToLower(tok)
	switch {
	case strings.HasPrefix(lower, "cols:"), strings.HasPrefix(lower, "columns:"):
		p.columnsDirective(tok, tok[strings.Index(tok, ":")+1:])
	case strings.HasPrefix(lower, "sort:"):
		p.sortDirective(tok, tok[len("sort:"):])
	case strings.HasPrefix(lower, "limit:"):
		p.limitDirective(tok, tok[len("limit:"):])
	case strings.HasPrefix(lower, "group:"):
		p.groupDirective(tok, tok[len("group:"):])
	case strings.HasPrefix(lower, "metrics:"):
		p.listDirective(tok, tok[len("metrics:"):], &p.spec.Directives.Metrics)
	case strings.HasPrefix(lower, "with:"):
		p.listDirective(tok, tok[len("with:"):], &p.spec.Directives.Relations)
	case strings.HasPrefix(lower, "view:"):
		p.spec.Directives.View = strings.ToLower(tok[len("view:"):])
	default:
		return false
	}
	return true
}

func (p *parser) columnsDirective(tok, list string) {
	cols := splitCommaList(list)
	if len(cols) == 0 {
		p.spec.addError(tok, "empty column list")
		return
	}
	p.spec.Directives.Columns = append(p.spec.Directives.Columns, cols...)
}

func (p *parser) sortDirective(tok, list string) {
	items := splitCommaList(list)
	if len(items) == 0 {
		p.spec.addError(tok, "empty sort list")
		return
	}
	for _, item := range items {
		key := SortKey{Field: item}
		switch {
		case strings.HasSuffix(item, "-"):
			key = SortKey{Field: strings.TrimSuffix(item, "-"), Desc: true}
		case strings.HasSuffix(item, "+"):
			key = SortKey{Field: strings.TrimSuffix(item, "+")}
		}
		if key.Field == "" {
			p.spec.addError(tok, "empty sort field")
			continue
		}
		if !p.ctx.knownField(p.spec.Domain, key.Field) {
			p.spec.addError(tok, fmt.Sprintf("unknown sort field %q for %s", key.Field, p.spec.Domain))
			continue
		}
		p.spec.Directives.Sort = append(p.spec.Directives.Sort, key)
	}
}

func (p *parser) limitDirective(tok, value string) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		p.spec.addError(tok, "limit must be a non-negative integer")
		return
	}
	p.spec.Directives.Limit = n
}

func (p *parser) groupDirective(tok, field string) {
	if field == "" {
		p.spec.addError(tok, "missing group field")
		return
	}
	if !p.ctx.knownField(p.spec.Domain, field) {
		p.spec.addError(tok, fmt.Sprintf("unknown group field %q for %s", field, p.spec.Domain))
		return
	}
	p.spec.Directives.GroupBy = field
}

func (p *parser) listDirective(tok, list string, dst *[]string) {
	items := splitCommaList(list)
	if len(items) == 0 {
		p.spec.addError(tok, "empty list")
		return
	}
	*dst = append(*dst, items...)
}

// fieldFilter handles the generic field<op>value form. An unknown field
// name is a validation error, not silently ignored.
func (p *parser) fieldFilter(tok string) bool {
	for _, op := range operatorSpellings {
		idx := strings.Index(tok, op)
		if idx <= 0 {
			continue
		}
		field := tok[:idx]
		value := tok[idx+len(op):]
		if !isIdentifier(field) {
			return false
		}
		if !p.ctx.knownField(p.spec.Domain, field) {
			p.spec.addError(tok, fmt.Sprintf("unknown field %q for %s", field, p.spec.Domain))
			return true
		}
		if value == "" {
			p.spec.addError(tok, "missing value")
			return true
		}
		p.spec.addFilter(field, FilterClause{Op: Operator(op), Value: value})
		return true
	}
	return false
}

// existsFilter: a bare known field name filters on field presence.
func (p *parser) existsFilter(tok string) bool {
	if !isIdentifier(tok) || !p.ctx.knownField(p.spec.Domain, tok) {
		return false
	}
	p.spec.addFilter(tok, FilterClause{Op: OpExists})
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
