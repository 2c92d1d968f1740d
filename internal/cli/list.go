package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskdeck/internal/format"
	"taskdeck/internal/query"
)

func newListCmd(app *App) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list [query...]",
		Short: "Run a query and print the rows",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, reg, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}

			line := fullQueryLine(strings.Join(args, " "))
			if group != "" && !strings.Contains(line, "group:") {
				line += " group:" + group
			}
			ctx := query.NewParseContext(reg, conn.ProjectNames())
			spec, err := query.Parse(ctx, line)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !spec.IsValid() {
				return writeErr(cmd, fmt.Errorf("bad query: %s", spec.ErrorSummary()))
			}

			eval := query.NewEvaluator(conn, reg, app.log)
			res, err := eval.Evaluate(spec)
			if err != nil {
				return writeErr(cmd, err)
			}
			return format.Write(cmd.OutOrStdout(), res, spec.Domain, reg, app.Format, app.Pretty)
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Group rows by a field (shorthand for group:<field>)")
	return cmd
}
