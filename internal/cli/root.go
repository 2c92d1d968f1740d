// Package cli wires the cobra command tree: the interactive console plus the
// scriptable list/add/done/clock/views commands.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"taskdeck/internal/config"
	"taskdeck/internal/logging"
	"taskdeck/internal/schema"
	"taskdeck/internal/store"
)

type App struct {
	Dir    string
	Format string
	Theme  string
	Pretty bool

	cfg config.Config
	log zerolog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskdeck",
		Short:        "Terminal task console with a query language",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive console
  taskdeck

  # Open the console on a query (no subcommand needed)
  taskdeck @house p1 due<eow

  # Scriptable output
  taskdeck list tasks overdue --format json

  # Capture and complete work
  taskdeck add "call plumber" --project house --due tomorrow
  taskdeck done 12
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(app, "", false)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		app.cfg = cfg
		if app.Theme != "" {
			// Flag wins over config; the theme package reads the env.
			os.Setenv("TASKDECK_THEME", app.Theme)
		} else if cfg.Theme != "" && cfg.Theme != "auto" {
			os.Setenv("TASKDECK_THEME", cfg.Theme)
		}
		app.log = logging.ForWriter(cmd.ErrOrStderr(), cfg.Log.Level)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("TASKDECK_DIR", ""), "Path to the data directory (default: nearest .taskdeck, else ~/.taskdeck)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKDECK_FORMAT", "table"), "Output format for scriptable commands (table|json)")
	cmd.PersistentFlags().StringVar(&app.Theme, "theme", "", "Force the console theme (light|dark)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", true, "Pretty-print JSON output")

	cmd.AddCommand(newOpenCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDoneCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newStartCmd(app))
	cmd.AddCommand(newStopCmd(app))
	cmd.AddCommand(newViewsCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// dataDir resolves the store directory: --dir, then walking up for a
// .taskdeck directory, then the home-level default.
func (app *App) dataDir() (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	if app.cfg.Store.Dir != "" {
		return app.cfg.Store.Dir, nil
	}
	return store.DefaultDir()
}

func (app *App) openStore() (store.Store, error) {
	dir, err := app.dataDir()
	if err != nil {
		return store.Store{}, err
	}
	return store.Store{
		Dir:        dir,
		Backend:    store.Backend(app.cfg.Store.Backend),
		BackupKeep: app.cfg.Store.Backups,
		Log:        app.log,
	}, nil
}

func (app *App) openConn() (*store.Conn, *schema.Registry, error) {
	s, err := app.openStore()
	if err != nil {
		return nil, nil, err
	}
	reg := schema.NewRegistry()
	conn, err := store.OpenConn(s, reg)
	if err != nil {
		return nil, nil, err
	}
	return conn, reg, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
