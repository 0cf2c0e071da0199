package root

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finquest/internal/engine"
	"finquest/internal/featuregate"
	"finquest/internal/ui"
)

func newFeaturesCmd() *cobra.Command {
	var modeFlag string
	cmd := &cobra.Command{
		Use:   "features [key]",
		Short: "Show which features your level unlocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := featuregate.ParseMode(modeFlag)
			if err != nil {
				return err
			}
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

			if len(args) == 1 {
				key := strings.ToUpper(args[0])
				if _, ok := a.engine.Feature(key); !ok {
					fmt.Fprintln(out, ui.Muted.Render("Unknown feature; unknown features are always available."))
				}
				renderGate(out, a.engine, key, mode)
				return nil
			}
			fmt.Fprintln(out, ui.Heading(ui.IconUnlock, "Features"))
			for _, def := range a.engine.Features() {
				renderGate(out, a.engine, def.Key, mode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", string(featuregate.ModePreview), "how locked features render: full, preview, block or limited")
	return cmd
}

func renderGate(out io.Writer, svc *engine.Service, key string, mode featuregate.Mode) {
	in := featuregate.For(svc, key, mode, false)
	ind := featuregate.NewIndicator(in.Access, in.Definition, time.Now())
	d := featuregate.Decide(in)
	switch d.Render {
	case featuregate.RenderNothing:
		return
	case featuregate.RenderContent:
		fmt.Fprintln(out, ind.String())
		if d.Overlay != nil {
			fmt.Fprintln(out, "  "+ui.Warn.Render(d.Overlay.Message))
		}
	case featuregate.RenderPreview:
		p := d.Preview
		fmt.Fprintln(out, ind.String())
		if p.Description != "" {
			fmt.Fprintln(out, "  "+ui.Muted.Render(p.Description))
		}
		fmt.Fprintf(out, "  %s %.0f%% toward level %d\n", ui.ProgressBar(p.ProgressPct, 20), p.ProgressPct, p.RequiredLevel)
		for _, b := range p.Benefits {
			fmt.Fprintln(out, "  • "+b)
		}
	}
}
