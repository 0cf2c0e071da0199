package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newPasswordCmd() *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
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
			if current, err = readSecret(cmd, current, "Current password"); err != nil {
				return err
			}
			if next, err = readSecret(cmd, next, "New password"); err != nil {
				return err
			}
			if err := a.session.ChangePassword(ctx, current, next); err != nil {
				return printValidation(cmd.OutOrStdout(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("Password changed."))
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}
