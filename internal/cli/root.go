package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "synheart-guard",
	Short: "Synheart Guard - biometric early-warning engine",
	Long: `Synheart Guard pairs with a wearable, scores heart rate, HRV and stress
samples into a regulation score, and raises graded warnings before a
stress episode peaks.

Samples are buffered locally while offline and synced to the remote store
when connectivity returns.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalOpts.ConfigPath, "config", "c", "", "Config file (default ./synheart-guard.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Format, "format", "text", "Output format: text|json")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Log level override")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Quiet, "quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}
