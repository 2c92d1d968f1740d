package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/model"
	"taskdeck/internal/query"
)

// setProfile pins the lipgloss profile for one test so assertions do not
// depend on the host terminal.
func setProfile(t *testing.T, p termenv.Profile) {
	t.Helper()
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(p)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
}

func sampleResult() *query.Result {
	tasks := []model.Task{
		{ID: 1, Text: "buy paint", Project: "house", Priority: "2"},
		{ID: 2, Text: "call plumber", Project: "house"},
		{ID: 3, Text: "book flights", Project: "trip", Priority: "1"},
	}
	res := &query.Result{
		Columns:        []string{"id", "text", "project"},
		ActualRowCount: 3,
	}
	for _, t := range tasks {
		res.Rows = append(res.Rows, query.Row{Entity: t})
	}
	return res
}

func TestWriteTable(t *testing.T) {
	setProfile(t, termenv.Ascii)
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResult(), model.DomainTask, nil))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "id  text          project", lines[0])
	require.Equal(t, "1   buy paint     house", lines[1])
	require.Equal(t, "3   book flights  trip", lines[3])
}

func TestWriteTableGrouped(t *testing.T) {
	setProfile(t, termenv.Ascii)
	res := sampleResult()
	res.GroupBy = "project"

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, res, model.DomainTask, nil))

	out := buf.String()
	require.Contains(t, out, "-- house --")
	require.Contains(t, out, "-- trip --")
	require.Less(t, strings.Index(out, "-- house --"), strings.Index(out, "-- trip --"))
}

func TestWriteTableTruncationFooter(t *testing.T) {
	setProfile(t, termenv.Ascii)
	res := sampleResult()
	res.ActualRowCount = 40

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, res, model.DomainTask, nil))
	require.Contains(t, buf.String(), "3 of 40 rows")
}

func TestWriteTableColorTerminal(t *testing.T) {
	setProfile(t, termenv.TrueColor)
	res := sampleResult()
	res.GroupBy = "project"
	res.Warnings = []string{"unknown column: nope"}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, res, model.DomainTask, nil))

	out := buf.String()
	lines := strings.Split(out, "\n")
	// Header carries the bold/underline chrome on a color terminal.
	require.Contains(t, lines[0], "\x1b[1")
	require.Contains(t, out, "-- house --")
	require.Contains(t, out, "warning: unknown column: nope")

	// Group labels and warnings are colored.
	for _, line := range lines {
		if strings.Contains(line, "-- house --") || strings.Contains(line, "warning:") {
			require.Contains(t, line, "\x1b[")
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult(), false))

	var out struct {
		Rows []map[string]string `json:"rows"`
		Meta struct {
			Count int `json:"count"`
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Rows, 3)
	require.Equal(t, "buy paint", out.Rows[0]["text"])
	require.Equal(t, 3, out.Meta.Total)
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, sampleResult(), model.DomainTask, nil, "yaml", false)
	require.Error(t, err)
}
