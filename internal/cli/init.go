package cli

import (
	"errors"
	"fmt"
	"os"

	"autopilot/internal/project"
	"autopilot/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <script.json|script.yaml>",
		Short: "Create a new script holding just the main context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := store.FormatForPath(path); err != nil {
				return writeErr(cmd, err)
			}
			if _, err := os.Stat(path); err == nil {
				return writeErr(cmd, fmt.Errorf("%s already exists", path))
			} else if !errors.Is(err, os.ErrNotExist) {
				return writeErr(cmd, err)
			}
			script := project.NewScript(nil)
			if err := store.SaveScript(path, script); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"path": path,
					"id":   script.ID,
				},
			})
		},
	}
	return cmd
}
