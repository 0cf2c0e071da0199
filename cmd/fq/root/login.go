package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/auth"
	"finquest/internal/ui"
)

func newLoginCmd() *cobra.Command {
	var email, password, code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in (asks for a 2FA code when the account needs one)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			pw, err := readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			required, err := a.session.Check2FA(ctx, email, pw)
			if err != nil {
				return printValidation(out, err)
			}
			if required && code == "" {
				if code, err = readSecret(cmd, "", "Two-factor code"); err != nil {
					return err
				}
			}

			a.watchAuth(ctx)
			a.printNotifications(out)
			if err := a.session.Login(ctx, auth.Credentials{Email: email, Password: pw, TwoFactorCode: code}); err != nil {
				return printValidation(out, err)
			}
			a.engine.Wait()

			snap := a.session.Snapshot()
			fmt.Fprintln(out, ui.Heading(ui.IconKey, "Signed in as "+userLabel(snap.User)))
			st := a.engine.Snapshot()
			if st.Profile != nil {
				fmt.Fprintln(out, ui.LabelValue("Level", fmt.Sprintf("%d %s", st.Level(), a.engine.Levels().Name(st.Level()))))
				fmt.Fprintln(out, ui.LabelValue("Total XP", st.TotalXP()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&code, "code", "", "6-digit two-factor code")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
