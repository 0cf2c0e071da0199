package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			_ = a.session.Initialize(ctx)
			a.engine.Clear(ctx)
			a.session.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("Signed out."))
			return nil
		},
	}
}
