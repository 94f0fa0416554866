package main

import (
	"github.com/spf13/cobra"
)

var purgeDays int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List cached scan results",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached scan results",
	Long: `Delete every cached scan result. Write-off requests and settings are
kept.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached results older than the retention period",
	Long: `Delete cached results older than --days (default: scan.retentionDays).

Examples:
  livecheck purge            # Use the configured retention
  livecheck purge --days 7   # Keep one week`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", -1, "Retention in days (default: scan.retentionDays)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(purgeCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.GetLivecheckHistory()
	if err != nil {
		return err
	}
	return printResponse(entries)
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.ClearHistory(cmd.Context())
	if err != nil {
		return shownError{err}
	}
	return printResponse(&countResponse{Action: "cleared", Count: n})
}

func runPurge(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.Purge(cmd.Context(), purgeDays)
	if err != nil {
		return shownError{err}
	}
	return printResponse(&countResponse{Action: "purged", Count: n})
}
