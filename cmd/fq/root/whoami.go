package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			_ = a.session.Initialize(ctx)
			snap := a.session.Snapshot()
			fmt.Fprintln(out, ui.LabelValue("Session", ui.AuthStateText(string(snap.State))))
			if !snap.Authenticated() {
				return nil
			}
			fmt.Fprintln(out, ui.LabelValue("User", userLabel(snap.User)))
			if id := snap.User.ID(); id != "" {
				fmt.Fprintln(out, ui.LabelValue("ID", id))
			}
			if email := snap.User.String("email"); email != "" {
				fmt.Fprintln(out, ui.LabelValue("Email", email))
			}
			if tfa, ok := snap.User["two_factor_enabled"].(bool); ok {
				fmt.Fprintln(out, ui.LabelValue("2FA", enabledStr(tfa)))
			}
			fmt.Fprintln(out, ui.LabelValue("Expires", snap.ExpiresAt.Local().Format(time.RFC1123)))
			fmt.Fprintln(out, ui.LabelValue("Backend", a.client.BaseURL()))
			return nil
		},
	}
}

func enabledStr(ok bool) string {
	if ok {
		return ui.Good.Render("enabled")
	}
	return ui.Bad.Render("disabled")
}
