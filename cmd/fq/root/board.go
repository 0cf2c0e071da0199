package root

import (
	"github.com/spf13/cobra"

	"finquest/internal/tui"
)

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := a.requireLogin(ctx)
			if err != nil {
				return err
			}
			return tui.RunBoard(ctx, a.engine, a.queue, userLabel(snap.User), cmd.OutOrStdout())
		},
	}
}
