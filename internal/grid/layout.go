package grid

import (
	"taskdeck/internal/model"
	"taskdeck/internal/query"
	"taskdeck/internal/schema"
)

// selectionMargin is reserved at the left edge for the selection bar and
// multi-select marks.
const selectionMargin = 2

// flexMinWidth is the floor for columns that share the leftover width.
const flexMinWidth = 8

// Column is one laid-out grid column.
type Column struct {
	Name  string
	Width int
	// Fixed columns keep their schema width; flexible ones split the rest.
	Fixed    bool
	Editable bool
}

// buildColumns resolves the result's projected columns against the schema.
// Unknown columns (computed relation/metric fields) render as fixed columns
// sized off their header.
func buildColumns(reg *schema.Registry, domain model.Domain, res *query.Result) []Column {
	cols := make([]Column, 0, len(res.Columns))
	for _, name := range res.Columns {
		fs := reg.GetSchema(domain, name)
		c := Column{Name: name}
		switch {
		case fs == nil:
			c.Fixed = true
			c.Width = max(len(name)+2, 10)
		case fs.DefaultWidth > 0:
			c.Fixed = true
			c.Width = max(fs.DefaultWidth, fs.MinWidth)
			c.Editable = fs.Editable
		default:
			c.Width = fs.MinWidth
			c.Editable = fs.Editable
		}
		cols = append(cols, c)
	}
	return cols
}

// allocateWidths distributes the terminal width: fixed columns keep their
// width (never below the schema minimum), flexible columns split what is
// left evenly with a floor of flexMinWidth, and the total never exceeds
// the terminal width minus the selection margin. When even the fixed
// columns overflow, trailing columns are squeezed to their minimum and
// then dropped to zero width.
func allocateWidths(cols []Column, total int) []int {
	usable := total - selectionMargin - len(cols) + 1 // one space between columns
	if usable < 0 {
		usable = 0
	}

	widths := make([]int, len(cols))
	fixedSum := 0
	flexible := 0
	for i, c := range cols {
		if c.Fixed {
			widths[i] = c.Width
			fixedSum += c.Width
		} else {
			flexible++
		}
	}

	remaining := usable - fixedSum
	if flexible > 0 {
		share := remaining / flexible
		if share < flexMinWidth {
			share = flexMinWidth
		}
		for i, c := range cols {
			if !c.Fixed {
				widths[i] = share
			}
		}
	}

	// Clip from the right until we fit.
	sum := 0
	for _, w := range widths {
		sum += w
	}
	for i := len(widths) - 1; i >= 0 && sum > usable; i-- {
		over := sum - usable
		cut := widths[i]
		if cut > over {
			cut = over
		}
		widths[i] -= cut
		sum -= cut
	}
	return widths
}
