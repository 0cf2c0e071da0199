package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finquest/internal/engine"
	"finquest/internal/ui"
)

func newRecordCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "record <action> <entity-type> <entity-id>",
		Short: "Report an action to earn XP (e.g. create_expense expense e1)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				return errors.New("action, entity type and entity id are required")
			}
			return nil
		},
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
			action := engine.ActionType(args[0])
			if !action.IsKnown() {
				fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" unknown action type; sending anyway"))
			}
			a.printNotifications(out)
			res := a.engine.RecordAction(ctx, action, args[1], args[2], desc)
			if res == nil {
				fmt.Fprintln(out, ui.Muted.Render("No XP awarded (see log for details)."))
				return nil
			}
			fmt.Fprintln(out, ui.LabelValue("Total XP", res.TotalXP))
			fmt.Fprintln(out, ui.LabelValue("Level", fmt.Sprintf("%d %s", res.Level, res.LevelName)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description sent with the action")
	return cmd
}
