package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <task-id> [note...]",
		Short: "Start the clock on a task (stops any running clock)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := parseTaskID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			tl, err := conn.StartClock(id, strings.Join(args[1:], " "), time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clock %d started on task %d\n", tl.ID, id)
			return nil
		},
	}
}

func newStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := app.openConn()
			if err != nil {
				return writeErr(cmd, err)
			}
			tl, stopped, err := conn.StopClock(time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			if !stopped {
				fmt.Fprintln(cmd.OutOrStdout(), "no clock running")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clock %d stopped\n", tl.ID)
			return nil
		},
	}
}
