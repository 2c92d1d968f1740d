// Package format renders query results for non-interactive commands.
package format

import (
	"encoding/json"
	"fmt"
	"io"

	"taskdeck/internal/model"
	"taskdeck/internal/query"
	"taskdeck/internal/schema"
)

// Write writes a query result in the requested format.
//
// Supported formats:
// - table (default)
// - json
func Write(w io.Writer, res *query.Result, domain model.Domain, reg *schema.Registry, format string, pretty bool) error {
	switch format {
	case "", "table":
		return WriteTable(w, res, domain, reg)
	case "json":
		return WriteJSON(w, res, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands: one object per row
// keyed by projected column, plus a meta object.
func WriteJSON(w io.Writer, res *query.Result, pretty bool) error {
	rows := make([]map[string]string, len(res.Rows))
	for i := range res.Rows {
		m := make(map[string]string, len(res.Columns))
		for _, col := range res.Columns {
			m[col] = res.ValueAt(i, col)
		}
		rows[i] = m
	}
	out := struct {
		Rows []map[string]string `json:"rows"`
		Meta struct {
			Count    int      `json:"count"`
			Total    int      `json:"total"`
			GroupBy  string   `json:"group_by,omitempty"`
			Warnings []string `json:"warnings,omitempty"`
		} `json:"meta"`
	}{Rows: rows}
	out.Meta.Count = len(res.Rows)
	out.Meta.Total = res.ActualRowCount
	out.Meta.GroupBy = res.GroupBy
	out.Meta.Warnings = res.Warnings

	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(out, "", "  ")
	} else {
		b, err = json.Marshal(out)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
