package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finquest/internal/featuregate"
	"finquest/internal/ui"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show level, XP and unlocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			a.watchAuth(ctx)
			a.printNotifications(out)
			snap, err := a.requireLogin(ctx)
			if err != nil {
				return err
			}
			a.engine.Wait()

			st := a.engine.Snapshot()
			if st.Profile == nil {
				return fmt.Errorf("gamification profile unavailable from %s", a.client.BaseURL())
			}
			prog := a.engine.Progress()
			fmt.Fprintln(out, ui.Heading(ui.IconSparkle, "Status for "+userLabel(snap.User)))
			fmt.Fprintln(out, ui.LabelValue("Level", ui.LevelStyle(prog.Current.Color).Render(
				fmt.Sprintf("%d %s", st.Level(), a.engine.Levels().Name(st.Level())))))
			if prog.Next != nil {
				fmt.Fprintln(out, ui.LabelValue("Total XP", fmt.Sprintf("%d (next: %s at %d, %d to go)",
					st.TotalXP(), prog.Next.Name, prog.Next.MinXP, prog.XPToNext)))
			} else {
				fmt.Fprintln(out, ui.LabelValue("Total XP", fmt.Sprintf("%d (max level)", st.TotalXP())))
			}
			fmt.Fprintf(out, "%s %.0f%%\n", ui.ProgressBar(prog.Percent, 30), prog.Percent)
			if s := st.Stats; s != nil {
				fmt.Fprintln(out, ui.LabelValue("Streak", fmt.Sprintf("%d days", s.CurrentStreak)))
				fmt.Fprintln(out, ui.LabelValue("Actions", s.TotalActions))
				fmt.Fprintln(out, ui.LabelValue("Achievements", fmt.Sprintf("%d/%d", s.CompletedAchievements, s.TotalAchievements)))
			}
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, ui.H2.Render(ui.IconUnlock+" Features"))
			now := time.Now()
			for _, def := range a.engine.Features() {
				ind := featuregate.NewIndicator(a.engine.GetFeatureAccess(def.Key), def, now)
				fmt.Fprintf(out, "- %s\n", ind)
			}
			return nil
		},
	}
	return cmd
}
