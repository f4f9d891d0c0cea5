package cli

import (
	"autopilot/internal/store"

	"github.com/spf13/cobra"
)

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <script>",
		Short: "Print a script in the selected output format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := store.LoadScript(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": script})
		},
	}
}

func newStateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "state <script>",
		Short: "Print the saved selection of each viewport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.openProject(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			st := s.CurrentState()
			if err := s.Close(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st})
		},
	}
}
