package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := a.requireLogin(ctx); err != nil {
				return err
			}
			if err := a.session.RefreshToken(ctx); err != nil {
				return fmt.Errorf("%w (signed out)", err)
			}
			exp := a.session.Snapshot().ExpiresAt
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("Session renewed.")+" "+
				ui.Muted.Render("expires "+exp.Local().Format(time.RFC1123)))
			return nil
		},
	}
}
