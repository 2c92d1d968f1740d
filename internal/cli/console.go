package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskdeck/internal/grid"
	"taskdeck/internal/logging"
	"taskdeck/internal/query"
	"taskdeck/internal/store"
	"taskdeck/internal/term"
	"taskdeck/internal/theme"
)

func newOpenCmd(app *App) *cobra.Command {
	var kanban bool

	cmd := &cobra.Command{
		Use:   "open [query...]",
		Short: "Start the interactive console, optionally on a query",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(app, strings.Join(args, " "), kanban)
		},
	}
	cmd.Flags().BoolVar(&kanban, "kanban", false, "Start in kanban view")
	return cmd
}

func newBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board [query...]",
		Short: "Start the console in kanban view",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(app, strings.Join(args, " "), true)
		},
	}
}

// defaultQuery shows open work first.
const defaultQuery = "tasks status:open"

// fullQueryLine prepends the task domain when the user started straight with
// filters ("@house p1" instead of "tasks @house p1").
func fullQueryLine(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return defaultQuery
	}
	first := strings.Fields(q)[0]
	if _, ok := query.NormalizeDomain(first); ok {
		return q
	}
	return "tasks " + q
}

func runConsole(app *App, queryText string, kanban bool) error {
	conn, reg, err := app.openConn()
	if err != nil {
		return err
	}
	s, err := app.openStore()
	if err != nil {
		return err
	}

	dir, err := app.dataDir()
	if err != nil {
		return err
	}
	log, closeLog, err := logging.Setup(app.cfg.Log.Level, app.cfg.Log.File, dir)
	if err != nil {
		// Console still works without a log file.
		log = app.log
		closeLog = func() {}
	}
	defer closeLog()

	eval := query.NewEvaluator(conn, reg, log)
	line := fullQueryLine(queryText)

	parse := func(q string) (*query.Spec, error) {
		ctx := query.NewParseContext(reg, conn.ProjectNames())
		spec, err := query.Parse(ctx, q)
		if err != nil {
			return nil, err
		}
		if !spec.IsValid() {
			return nil, fmt.Errorf("bad query: %s", spec.ErrorSummary())
		}
		return spec, nil
	}

	spec, err := parse(line)
	if err != nil {
		return err
	}
	res, err := eval.Evaluate(spec)
	if err != nil {
		return err
	}

	th := theme.Detect()
	opt := grid.Options{
		Domain:   spec.Domain,
		Registry: reg,
		Store:    conn,
		Theme:    th,
		Log:      log,
		Query:    line,
		Views:    s,
		Requery: func() (*query.Result, error) {
			return eval.Evaluate(spec)
		},
		AllowSensitiveEdits: app.cfg.AllowSensitiveEdits,
	}

	g := grid.New(opt, res)

	g.SetOnLoadView(func(b store.ViewBundle) error {
		q := fullQueryLine(viewQueryLine(b))
		sp, err := parse(q)
		if err != nil {
			return err
		}
		r, err := eval.Evaluate(sp)
		if err != nil {
			return err
		}
		spec = sp
		line = q
		g.SetResult(r)
		return nil
	})

	if kanban || spec.WantsKanban() {
		g.EnterKanban()
	}

	t, err := term.Open()
	if err != nil {
		return err
	}
	return grid.Run(t, g, th, log)
}

// viewQueryLine folds a bundle's saved presentation back into its query so
// loading a view restores columns and sort too.
func viewQueryLine(b store.ViewBundle) string {
	parts := []string{b.Query}
	if len(b.Columns) > 0 && !strings.Contains(b.Query, "cols:") {
		parts = append(parts, "cols:"+strings.Join(b.Columns, ","))
	}
	if b.Sort != "" && !strings.Contains(b.Query, "sort:") {
		parts = append(parts, "sort:"+b.Sort)
	}
	return strings.Join(parts, " ")
}
