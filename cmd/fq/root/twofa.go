package root

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func new2FACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage two-factor authentication",
	}
	cmd.AddCommand(new2FASetupCmd(), new2FAEnableCmd(), new2FACheckCmd())
	return cmd
}

func new2FASetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Start 2FA enrollment and print the authenticator secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if _, err := a.requireLogin(ctx); err != nil {
				return err
			}
			prov, err := a.session.Setup2FA(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.Heading(ui.IconKey, "Two-factor setup"))
			fmt.Fprintln(out, ui.LabelValue("Issuer", prov.Issuer))
			fmt.Fprintln(out, ui.LabelValue("Account", prov.Account))
			fmt.Fprintln(out, ui.LabelValue("Secret", prov.Secret))
			fmt.Fprintln(out, ui.LabelValue("Digits", prov.Digits))
			fmt.Fprintln(out, ui.LabelValue("Period", fmt.Sprintf("%ds", prov.Period)))
			fmt.Fprintln(out, ui.LabelValue("URI", prov.URL))
			if len(prov.BackupCodes) > 0 {
				fmt.Fprintln(out, ui.LabelValue("Backup codes", strings.Join(prov.BackupCodes, " ")))
				fmt.Fprintln(out, ui.Warn.Render("Store the backup codes somewhere safe; they are shown once."))
			}
			fmt.Fprintln(out, ui.Muted.Render("Then run `fq 2fa enable <code>` with a code from your app."))
			return nil
		},
	}
}

func new2FAEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <code>",
		Short: "Confirm enrollment with a 6-digit code",
		Args:  cobra.ExactArgs(1),
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
			if err := a.session.Enable2FA(ctx, strings.TrimSpace(args[0])); err != nil {
				return printValidation(cmd.OutOrStdout(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("Two-factor authentication enabled."))
			return nil
		},
	}
}

func new2FACheckCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask whether an account needs a 2FA code to sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			pw, err := readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			required, err := a.session.Check2FA(ctx, email, pw)
			if err != nil {
				return printValidation(cmd.OutOrStdout(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("2FA required", required))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
