package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskdeck/internal/model"
	"taskdeck/internal/query"
	"taskdeck/internal/schema"
)

// Table chrome. The colors resolve against the global lipgloss profile, so
// piped output (Ascii profile) stays byte-for-byte plain text.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	groupStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "27", Dark: "62"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"})
)

// WriteTable writes an aligned plain-text table. When the result carries a
// group-by field the rows are printed under one section per group value, in
// row order, with ungrouped rows last.
func WriteTable(w io.Writer, res *query.Result, domain model.Domain, reg *schema.Registry) error {
	widths := make([]int, len(res.Columns))
	cells := make([][]string, len(res.Rows))
	for i, col := range res.Columns {
		widths[i] = xansi.StringWidth(col)
	}
	for i := range res.Rows {
		line := make([]string, len(res.Columns))
		for j, col := range res.Columns {
			v := res.ValueAt(i, col)
			if reg != nil {
				v = reg.Format(domain, col, v)
			}
			line[j] = v
			if w := xansi.StringWidth(v); w > widths[j] {
				widths[j] = w
			}
		}
		cells[i] = line
	}

	joinRow := func(line []string) string {
		parts := make([]string, len(line))
		for j, v := range line {
			parts[j] = pad(v, widths[j])
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}
	printRow := func(line []string) error {
		_, err := fmt.Fprintln(w, joinRow(line))
		return err
	}

	if _, err := fmt.Fprintln(w, headerStyle.Render(joinRow(res.Columns))); err != nil {
		return err
	}

	if res.GroupBy == "" {
		for _, line := range cells {
			if err := printRow(line); err != nil {
				return err
			}
		}
		return footer(w, res)
	}

	prev := "\x00"
	for i, line := range cells {
		g, _ := res.Rows[i].Field(res.GroupBy)
		if g != prev {
			label := g
			if label == "" {
				label = "(none)"
			}
			if _, err := fmt.Fprintf(w, "\n%s\n", groupStyle.Render("-- "+label+" --")); err != nil {
				return err
			}
			prev = g
		}
		if err := printRow(line); err != nil {
			return err
		}
	}
	return footer(w, res)
}

func footer(w io.Writer, res *query.Result) error {
	if len(res.Rows) < res.ActualRowCount {
		if _, err := fmt.Fprintf(w, "\n%d of %d rows\n", len(res.Rows), res.ActualRowCount); err != nil {
			return err
		}
	}
	for _, warn := range res.Warnings {
		if _, err := fmt.Fprintln(w, warnStyle.Render("warning: "+warn)); err != nil {
			return err
		}
	}
	return nil
}

func pad(s string, w int) string {
	if sw := xansi.StringWidth(s); sw < w {
		return s + strings.Repeat(" ", w-sw)
	}
	return s
}
