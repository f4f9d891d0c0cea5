package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"autopilot/internal/config"
	"autopilot/internal/format"
	"autopilot/internal/project"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type App struct {
	PrettyJSON      bool
	Format          string
	Verbose         bool
	StateDir        string
	Watch           bool
	SystemClipboard bool

	cfg config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "autopilot",
		Short:        "Edit autopilot scripts with undo/redo",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a script holding just the main context
  autopilot init login.json

  # Edit it interactively (shortcut for: autopilot repl login.json)
  autopilot login.json

  # Print the script or the saved viewport state
  autopilot show login.yaml --format edn --pretty
  autopilot state login.json
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.log == nil {
			zc := zap.NewProductionConfig()
			if app.Verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			app.log = log
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("state-dir") || app.StateDir != "" {
			cfg.StateDir = app.StateDir
		}
		if flags.Changed("watch") {
			cfg.Watch = app.Watch
		}
		if flags.Changed("system-clipboard") {
			cfg.SystemClipboard = app.SystemClipboard
		}
		app.cfg = cfg
		if cfg.File != "" {
			app.log.Debug("config loaded", zap.String("file", cfg.File))
		}
		return nil
	}

	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app.log != nil {
			_ = app.log.Sync()
		}
	}

	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("AUTOPILOT_FORMAT", "json"), "Output format (json|edn|yaml)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().StringVar(&app.StateDir, "state-dir", envOr("AUTOPILOT_STATE_DIR", ""), "Directory holding ui_state.sqlite (default: .autopilot next to the script)")
	cmd.PersistentFlags().BoolVar(&app.Watch, "watch", false, "Reload the script when it changes on disk")
	cmd.PersistentFlags().BoolVar(&app.SystemClipboard, "system-clipboard", false, "Use the OS clipboard for copy/cut/paste")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newStateCmd(app))
	cmd.AddCommand(newReplCmd(app))

	return cmd
}

func (app *App) openProject(ctx context.Context, path string) (*project.Session, error) {
	return project.Open(ctx, path, project.Options{Config: app.cfg, Log: app.log})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
