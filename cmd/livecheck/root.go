package main

import (
	"github.com/spf13/cobra"

	"livecheck/internal/version"
)

var (
	homeFlag    string
	formatFlag  string
	verboseFlag int
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "livecheck",
	Short: "livecheck - live code-quality diagnostics",
	Long: `livecheck sends files to the analysis service, caches the findings locally
and prints them as editor-style diagnostics. Write-off requests are tracked
alongside the cached results.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("livecheck version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Storage directory (default: $LIVECHECK_HOME or ~/.livecheck)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (human, json, yaml)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable logging")
}
