package grid

import (
	"regexp"
	"strings"

	"taskdeck/internal/query"
	"taskdeck/internal/term"
)

// filterState is the inline `/` prompt. The filter applies live on every
// keystroke, narrowing the displayed rows without re-running the evaluator.
type filterState struct {
	buf    []rune
	cursor int
}

func (g *Grid) openFilter() {
	g.filter = &filterState{}
	g.applyFilter()
	g.clampSelection()
}

func (g *Grid) handleFilterKey(k term.Key) {
	f := g.filter
	switch {
	case k.Code == term.KeyEscape:
		// Drop both the prompt and the narrowing.
		g.filter = nil
		g.applyFilterText("")
		g.clampSelection()
		return
	case k.Code == term.KeyEnter:
		// Keep the narrowing, close the prompt.
		text := string(f.buf)
		g.filter = nil
		g.applyFilterText(text)
		g.clampSelection()
		return

	case k.Code == term.KeyLeft:
		if f.cursor > 0 {
			f.cursor--
		}
	case k.Code == term.KeyRight:
		if f.cursor < len(f.buf) {
			f.cursor++
		}
	case k.Code == term.KeyBackspace:
		if f.cursor > 0 {
			f.buf = append(f.buf[:f.cursor-1], f.buf[f.cursor:]...)
			f.cursor--
		}
	case k.Code == term.KeyCtrlU:
		f.buf = f.buf[:0]
		f.cursor = 0
	case k.Code == term.KeyRune || k.Code == term.KeySpace:
		f.buf = append(f.buf[:f.cursor], append([]rune{k.Rune}, f.buf[f.cursor:]...)...)
		f.cursor++
	}
	g.applyFilterText(string(f.buf))
	g.clampSelection()
}

type rowMatcher func(query.Row) bool

// applyFilter re-derives the visible rows from the result using the live
// prompt buffer (when open) or the last applied text.
func (g *Grid) applyFilter() {
	text := g.appliedFilter
	if g.filter != nil {
		text = string(g.filter.buf)
	}
	g.applyFilterText(text)
}

func (g *Grid) applyFilterText(text string) {
	g.appliedFilter = text
	match := buildMatcher(text, g.result.Columns)
	if match == nil {
		g.rows = append([]query.Row(nil), g.result.Rows...)
		return
	}
	g.rows = g.rows[:0]
	for _, r := range g.result.Rows {
		if match(r) {
			g.rows = append(g.rows, r)
		}
	}
}

// buildMatcher interprets the filter text: `re:pat` or `/pat/` compile as
// regular expressions (a bad pattern matches nothing until corrected),
// anything else is a case-insensitive substring test over the visible
// columns.
func buildMatcher(text string, columns []string) rowMatcher {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var re *regexp.Regexp
	switch {
	case strings.HasPrefix(text, "re:"):
		re, _ = regexp.Compile(strings.TrimPrefix(text, "re:"))
	case len(text) >= 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/"):
		re, _ = regexp.Compile(text[1 : len(text)-1])
	}

	if re != nil {
		return func(r query.Row) bool {
			for _, col := range columns {
				if v, ok := r.Field(col); ok && re.MatchString(v) {
					return true
				}
			}
			return false
		}
	}
	if strings.HasPrefix(text, "re:") {
		// Regex requested but not (yet) valid: match nothing until fixed.
		return func(query.Row) bool { return false }
	}

	needle := strings.ToLower(text)
	return func(r query.Row) bool {
		for _, col := range columns {
			if v, ok := r.Field(col); ok && strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	}
}
