package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/auth"
	"finquest/internal/ui"
)

func newRegisterCmd() *cobra.Command {
	var in auth.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if in.Password, err = readSecret(cmd, in.Password, "Choose a password"); err != nil {
				return err
			}
			a.watchAuth(ctx)
			a.printNotifications(out)
			if err := a.session.Register(ctx, in); err != nil {
				return printValidation(out, err)
			}
			a.engine.Wait()
			fmt.Fprintln(out, ui.Heading(ui.IconSparkle, "Welcome, "+userLabel(a.session.Snapshot().User)))
			fmt.Fprintln(out, ui.Muted.Render("Record actions to earn XP and unlock features. Try `fq features`."))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, at least 8 characters (prompted when omitted)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
