package root

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finquest/internal/storage"
	"finquest/internal/ui"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show resolved configuration and the backend's runtime config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			dbPath, _ := storage.ResolveDBPath(a.cfg.StoragePath)
			fmt.Fprintln(out, ui.Heading(ui.IconInfo, "Configuration"))
			fmt.Fprintln(out, ui.LabelValue("Config file", a.cfg.Path))
			fmt.Fprintln(out, ui.LabelValue("Database", dbPath))
			fmt.Fprintln(out, ui.LabelValue("Candidates", strings.Join(a.cfg.APIBaseURLs, ", ")))
			fmt.Fprintln(out, ui.LabelValue("Backend", a.resolution.BaseURL))
			fmt.Fprintln(out, ui.LabelValue("Timeout", a.cfg.APITimeout))
			fmt.Fprintln(out, ui.LabelValue("Log level", a.cfg.LogLevel))
			fmt.Fprintln(out, ui.LabelValue("Theme", ui.Current()))

			rt := a.resolution.Runtime
			if rt == nil {
				if rt, err = a.client.RuntimeConfig(ctx); err != nil {
					fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" backend unreachable: "+err.Error()))
					return nil
				}
			}
			fmt.Fprintln(out, ui.LabelValue("Environment", rt.Environment))
			fmt.Fprintln(out, ui.LabelValue("Version", rt.Version))
			return nil
		},
	}
}
