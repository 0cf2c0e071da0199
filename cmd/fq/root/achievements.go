package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/engine"
	"finquest/internal/ui"
)

func newAchievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			a.watchAuth(ctx)
			if _, err := a.requireLogin(ctx); err != nil {
				return err
			}
			a.engine.Wait()

			list := a.engine.Snapshot().Achievements
			fmt.Fprintln(out, ui.Heading(ui.IconTrophy, fmt.Sprintf("Achievements (%d/%d)", engine.CountCompleted(list), len(list))))
			if len(list) == 0 {
				fmt.Fprintln(out, ui.Muted.Render("(none yet)"))
				return nil
			}
			for _, ach := range list {
				status := ui.Muted.Render(fmt.Sprintf("%d/%d", ach.DisplayProgress(), ach.Target))
				if ach.Completed() {
					status = ui.Good.Render("done")
					if ach.UnlockedAt != nil {
						status += ui.Muted.Render(" " + ach.UnlockedAt.Local().Format("2006-01-02"))
					}
				}
				fmt.Fprintf(out, "- %s %s %s %s\n", ach.Icon(), ui.Key.Render(ach.Name), status, ui.Muted.Render(fmt.Sprintf("(%d pts)", ach.Points)))
				if ach.Description != "" {
					fmt.Fprintln(out, "  "+ui.Muted.Render(ach.Description))
				}
			}
			return nil
		},
	}
}
