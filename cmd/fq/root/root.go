package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"finquest/internal/ui"
)

const Version = "0.1.0"

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "fq",
	Short:         "finquest: personal finance with XP, levels and unlocks",
	Long:          "finquest is a terminal client for the finquest backend: sign in, track progress, and see which features your level unlocks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.finquest/config.yaml, or $FQ_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "mirror logs to stderr")

	rootCmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newRefreshCmd(),
		newWhoamiCmd(),
		newPasswordCmd(),
		new2FACmd(),
		newStatusCmd(),
		newFeaturesCmd(),
		newAchievementsCmd(),
		newRecordCmd(),
		newHistoryCmd(),
		newThemeCmd(),
		newBoardCmd(),
		newConfigCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}
