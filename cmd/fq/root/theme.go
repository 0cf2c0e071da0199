package root

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [name]",
		Short: "Show or set the color theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				fmt.Fprintln(out, ui.LabelValue("Theme", ui.Current()))
				fmt.Fprintln(out, ui.Muted.Render("available: "+strings.Join(ui.Themes(), ", ")))
				return nil
			}
			if err := ui.Apply(args[0]); err != nil {
				return err
			}
			if !a.store.SetPlain(ctx, themeKey, ui.Current()) {
				return errors.New("could not save theme preference")
			}
			fmt.Fprintln(out, ui.Good.Render("Theme set to "+ui.Current()+"."))
			return nil
		},
	}
}
