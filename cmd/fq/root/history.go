package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently awarded actions on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			recs, err := a.history.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.Heading(ui.IconChart, "Recent actions"))
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			if today, err := a.history.SumXPSince(ctx, midnight); err == nil {
				fmt.Fprintln(out, ui.LabelValue("Today", fmt.Sprintf("+%d XP", today)))
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, ui.Muted.Render("(empty)"))
				return nil
			}
			for _, r := range recs {
				line := fmt.Sprintf("- %s %s %s/%s %s",
					ui.Muted.Render(r.RecordedAt.Local().Format("2006-01-02 15:04")),
					ui.Key.Render(r.ActionType), r.EntityType, r.EntityID,
					ui.Good.Render(fmt.Sprintf("+%d XP", r.XPEarned)))
				if r.LevelUp {
					line += " " + ui.BadgeLevelUp
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "how many entries to show")
	return cmd
}
