package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"taskdeck/internal/store"
)

func newViewsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listViews(cmd, app)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save <name> <query>",
		Short: "Save a query as a named view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore()
			if err != nil {
				return writeErr(cmd, err)
			}
			v, err := s.LoadViews()
			if err != nil {
				return writeErr(cmd, err)
			}
			name := strings.TrimSpace(args[0])
			if name == "" {
				return writeErr(cmd, fmt.Errorf("empty view name"))
			}
			v.Slots[name] = store.ViewBundle{Name: name, Query: fullQueryLine(args[1])}
			if err := s.SaveViews(v); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved view %q\n", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore()
			if err != nil {
				return writeErr(cmd, err)
			}
			v, err := s.LoadViews()
			if err != nil {
				return writeErr(cmd, err)
			}
			name := args[0]
			if _, ok := v.Slots[name]; !ok {
				return writeErr(cmd, fmt.Errorf("no view %q", name))
			}
			delete(v.Slots, name)
			if v.LastUse == name {
				v.LastUse = ""
			}
			if err := s.SaveViews(v); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted view %q\n", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "open <name>",
		Short: "Start the console on a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore()
			if err != nil {
				return writeErr(cmd, err)
			}
			v, err := s.LoadViews()
			if err != nil {
				return writeErr(cmd, err)
			}
			b, ok := v.Slots[args[0]]
			if !ok {
				return writeErr(cmd, fmt.Errorf("no view %q", args[0]))
			}
			v.LastUse = b.Name
			if err := s.SaveViews(v); err != nil {
				app.log.Warn().Err(err).Msg("views: persisting last use failed")
			}
			return runConsole(app, viewQueryLine(b), false)
		},
	})

	return cmd
}

func listViews(cmd *cobra.Command, app *App) error {
	s, err := app.openStore()
	if err != nil {
		return writeErr(cmd, err)
	}
	v, err := s.LoadViews()
	if err != nil {
		return writeErr(cmd, err)
	}
	if len(v.Slots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no saved views")
		return nil
	}
	names := make([]string, 0, len(v.Slots))
	for name := range v.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := " "
		if name == v.LastUse {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", marker, name, v.Slots[name].Query)
	}
	return nil
}
