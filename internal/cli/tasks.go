package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdeck/internal/model"
)

func newAddCmd(app *App) *cobra.Command {
	var project, due, priority, tags, description string

	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}

			fields := map[string]string{}
			if project != "" {
				fields["project"] = project
			}
			if due != "" {
				fields["due"] = due
			}
			if priority != "" {
				fields["priority"] = priority
			}
			if tags != "" {
				fields["tags"] = tags
			}
			if description != "" {
				fields["description"] = description
			}

			t, err := conn.AddTask(strings.Join(args, " "), fields, time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added task %d: %s\n", t.ID, t.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name (created if missing)")
	cmd.Flags().StringVarP(&due, "due", "d", "", "Due date (yyyy-mm-dd, today, +7, eow, ...)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority 1..3")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&description, "description", "", "Longer description")

	return cmd
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id...>",
		Short: "Mark tasks done",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}
			for _, arg := range args {
				id, err := parseTaskID(arg)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := conn.CompleteTask(id, time.Now()); err != nil {
					return writeErr(cmd, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "done: task %d\n", id)
			}
			return nil
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	var domainName string

	cmd := &cobra.Command{
		Use:     "rm <key...>",
		Aliases: []string{"delete"},
		Short:   "Delete entities",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}
			domain, ok := normalizeDomainFlag(domainName)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown domain %q", domainName))
			}
			if err := conn.DeleteEntities(domain, args); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s(s)\n", len(args), domain)
			return nil
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "task", "Entity domain (task|project|timelog)")
	return cmd
}

func parseTaskID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad task id %q", s)
	}
	return id, nil
}

func normalizeDomainFlag(s string) (model.Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "task", "tasks":
		return model.DomainTask, true
	case "project", "projects":
		return model.DomainProject, true
	case "timelog", "timelogs":
		return model.DomainTimeLog, true
	}
	return "", false
}
